package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, payment_method, amount, status, reference_number,
	amount_received, change_amount, processed_by, processed_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID, &p.OrderID, &p.PaymentMethod, &p.Amount, &p.Status,
		&p.ReferenceNumber, &p.AmountReceived, &p.ChangeAmount,
		&p.ProcessedBy, &p.ProcessedAt,
	)
	return p, err
}

type CreatePaymentParams struct {
	OrderID         uuid.UUID
	PaymentMethod   string
	Amount          pgtype.Numeric
	Status          string
	ReferenceNumber pgtype.Text
	AmountReceived  pgtype.Numeric
	ChangeAmount    pgtype.Numeric
	ProcessedBy     pgtype.UUID
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (
			order_id, payment_method, amount, status, reference_number,
			amount_received, change_amount, processed_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+paymentColumns,
		arg.OrderID, arg.PaymentMethod, arg.Amount, arg.Status, arg.ReferenceNumber,
		arg.AmountReceived, arg.ChangeAmount, arg.ProcessedBy)
	return scanPayment(row)
}

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE order_id = $1 ORDER BY processed_at`,
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SumPaymentsByOrder totals COMPLETED payments for an order.
func (q *Queries) SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE order_id = $1 AND status = 'COMPLETED'`, orderID).Scan(&sum)
	return sum, err
}

type UpdatePaymentStatusParams struct {
	ID     uuid.UUID
	Status string
}

func (q *Queries) UpdatePaymentStatus(ctx context.Context, arg UpdatePaymentStatusParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE payments SET status = $2 WHERE id = $1
		RETURNING `+paymentColumns,
		arg.ID, arg.Status)
	return scanPayment(row)
}

// GetPendingGatewayPayment finds the PENDING gateway payment for an order,
// used when a payment notification webhook arrives.
func (q *Queries) GetPendingGatewayPayment(ctx context.Context, orderID uuid.UUID) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1 AND payment_method = 'GATEWAY' AND status = 'PENDING'
		ORDER BY processed_at DESC LIMIT 1`, orderID)
	return scanPayment(row)
}
