package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, branch_id, order_number, order_type, status, table_number, notes,
	subtotal, voucher_id, voucher_code, discount_amount, total_amount,
	created_by, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.BranchID, &o.OrderNumber, &o.OrderType, &o.Status,
		&o.TableNumber, &o.Notes,
		&o.Subtotal, &o.VoucherID, &o.VoucherCode, &o.DiscountAmount, &o.TotalAmount,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

// GetNextOrderNumber returns MAX(order_number)+1 for the branch.
// Concurrent transactions can race here; callers retry on the unique
// constraint violation.
func (q *Queries) GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM orders WHERE branch_id = $1`,
		branchID).Scan(&next)
	return next, err
}

type CreateOrderParams struct {
	BranchID       uuid.UUID
	OrderNumber    string
	SequenceNumber int32
	OrderType      string
	TableNumber    pgtype.Text
	Notes          pgtype.Text
	Subtotal       pgtype.Numeric
	VoucherID      pgtype.UUID
	VoucherCode    pgtype.Text
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	CreatedBy      uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (
			branch_id, order_number, sequence_number, order_type, status, table_number, notes,
			subtotal, voucher_id, voucher_code, discount_amount, total_amount, created_by
		)
		VALUES ($1, $2, $3, $4, 'NEW', $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+orderColumns,
		arg.BranchID, arg.OrderNumber, arg.SequenceNumber, arg.OrderType,
		arg.TableNumber, arg.Notes,
		arg.Subtotal, arg.VoucherID, arg.VoucherCode, arg.DiscountAmount, arg.TotalAmount,
		arg.CreatedBy)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
	Notes      pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var it OrderItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, menu_item_id, quantity, unit_price, subtotal, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, order_id, menu_item_id, quantity, unit_price, subtotal, notes`,
		arg.OrderID, arg.MenuItemID, arg.Quantity, arg.UnitPrice, arg.Subtotal, arg.Notes).
		Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.Notes)
	return it, err
}

type GetOrderParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND branch_id = $2`,
		arg.ID, arg.BranchID)
	return scanOrder(row)
}

type GetOrderForUpdateParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

// GetOrderForUpdate locks the order row to serialize concurrent payment writes.
func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderForUpdateParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND branch_id = $2 FOR NO KEY UPDATE`,
		arg.ID, arg.BranchID)
	return scanOrder(row)
}

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	return scanOrder(row)
}

type ListOrdersParams struct {
	BranchID uuid.UUID
	Status   pgtype.Text
	Limit    int32
	Offset   int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE branch_id = $1 AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		arg.BranchID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_id, menu_item_id, quantity, unit_price, subtotal, notes
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Quantity, &it.UnitPrice, &it.Subtotal, &it.Notes); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
	Status   string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2
		RETURNING `+orderColumns,
		arg.ID, arg.BranchID, arg.Status)
	return scanOrder(row)
}

type CancelOrderParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

// CancelOrder cancels an order unless it is already completed or cancelled.
func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND status NOT IN ('COMPLETED', 'CANCELLED')
		RETURNING `+orderColumns,
		arg.ID, arg.BranchID)
	return scanOrder(row)
}

// CompleteOrder marks an order COMPLETED unless it was cancelled.
func (q *Queries) CompleteOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'COMPLETED', updated_at = now()
		WHERE id = $1 AND status != 'CANCELLED'
		RETURNING `+orderColumns, id)
	return scanOrder(row)
}
