package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// Sales reports only count COMPLETED orders; cancelled and in-flight
// orders would skew revenue.

type GetDailySalesParams struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time
}

type GetDailySalesRow struct {
	SaleDate      pgtype.Date
	OrderCount    int64
	TotalRevenue  pgtype.Numeric
	TotalDiscount pgtype.Numeric
	NetRevenue    pgtype.Numeric
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT
			date(created_at AT TIME ZONE 'Asia/Jakarta') AS sale_date,
			count(*) AS order_count,
			coalesce(sum(subtotal), 0) AS total_revenue,
			coalesce(sum(discount_amount), 0) AS total_discount,
			coalesce(sum(total_amount), 0) AS net_revenue
		FROM orders
		WHERE branch_id = $1 AND status = 'COMPLETED'
			AND created_at >= $2 AND created_at < $3
		GROUP BY sale_date
		ORDER BY sale_date`,
		arg.BranchID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetDailySalesRow
	for rows.Next() {
		var r GetDailySalesRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.TotalRevenue, &r.TotalDiscount, &r.NetRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type GetMenuItemSalesParams struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time
	Limit    int32
}

type GetMenuItemSalesRow struct {
	MenuItemID   uuid.UUID
	MenuItemName string
	Category     string
	QuantitySold int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetMenuItemSales(ctx context.Context, arg GetMenuItemSalesParams) ([]GetMenuItemSalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT
			mi.id, mi.name, mi.category,
			coalesce(sum(oi.quantity), 0) AS quantity_sold,
			coalesce(sum(oi.subtotal), 0) AS total_revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN menu_items mi ON mi.id = oi.menu_item_id
		WHERE o.branch_id = $1 AND o.status = 'COMPLETED'
			AND o.created_at >= $2 AND o.created_at < $3
		GROUP BY mi.id, mi.name, mi.category
		ORDER BY quantity_sold DESC, total_revenue DESC
		LIMIT $4`,
		arg.BranchID, arg.From, arg.To, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetMenuItemSalesRow
	for rows.Next() {
		var r GetMenuItemSalesRow
		if err := rows.Scan(&r.MenuItemID, &r.MenuItemName, &r.Category, &r.QuantitySold, &r.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type GetPaymentSummaryParams struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time
}

type GetPaymentSummaryRow struct {
	PaymentMethod    string
	TransactionCount int64
	TotalAmount      pgtype.Numeric
}

func (q *Queries) GetPaymentSummary(ctx context.Context, arg GetPaymentSummaryParams) ([]GetPaymentSummaryRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT
			p.payment_method,
			count(*) AS transaction_count,
			coalesce(sum(p.amount), 0) AS total_amount
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE o.branch_id = $1 AND p.status = 'COMPLETED'
			AND p.processed_at >= $2 AND p.processed_at < $3
		GROUP BY p.payment_method
		ORDER BY total_amount DESC`,
		arg.BranchID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetPaymentSummaryRow
	for rows.Next() {
		var r GetPaymentSummaryRow
		if err := rows.Scan(&r.PaymentMethod, &r.TransactionCount, &r.TotalAmount); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type GetHourlySalesParams struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time
}

type GetHourlySalesRow struct {
	Hour         int32
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetHourlySales(ctx context.Context, arg GetHourlySalesParams) ([]GetHourlySalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT
			extract(hour FROM created_at AT TIME ZONE 'Asia/Jakarta')::int AS hour,
			count(*) AS order_count,
			coalesce(sum(total_amount), 0) AS total_revenue
		FROM orders
		WHERE branch_id = $1 AND status = 'COMPLETED'
			AND created_at >= $2 AND created_at < $3
		GROUP BY hour
		ORDER BY hour`,
		arg.BranchID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetHourlySalesRow
	for rows.Next() {
		var r GetHourlySalesRow
		if err := rows.Scan(&r.Hour, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type GetBranchComparisonParams struct {
	From time.Time
	To   time.Time
}

type GetBranchComparisonRow struct {
	BranchID     uuid.UUID
	BranchName   string
	OrderCount   int64
	TotalRevenue pgtype.Numeric
}

func (q *Queries) GetBranchComparison(ctx context.Context, arg GetBranchComparisonParams) ([]GetBranchComparisonRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT
			b.id, b.name,
			count(o.id) AS order_count,
			coalesce(sum(o.total_amount), 0) AS total_revenue
		FROM branches b
		LEFT JOIN orders o ON o.branch_id = b.id AND o.status = 'COMPLETED'
			AND o.created_at >= $1 AND o.created_at < $2
		WHERE b.is_active
		GROUP BY b.id, b.name
		ORDER BY total_revenue DESC`,
		arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GetBranchComparisonRow
	for rows.Next() {
		var r GetBranchComparisonRow
		if err := rows.Scan(&r.BranchID, &r.BranchName, &r.OrderCount, &r.TotalRevenue); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
