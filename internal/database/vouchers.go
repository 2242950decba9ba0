package database

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const voucherColumns = `id, code, name, description, type, value, min_purchase, max_discount,
	usage_limit, usage_count, valid_from, valid_until, is_active,
	happy_hour_start, happy_hour_end,
	applicable_categories, applicable_items, applicable_branches,
	created_at, updated_at`

func scanVoucher(row interface{ Scan(dest ...any) error }) (Voucher, error) {
	var v Voucher
	err := row.Scan(
		&v.ID, &v.Code, &v.Name, &v.Description, &v.Type,
		&v.Value, &v.MinPurchase, &v.MaxDiscount,
		&v.UsageLimit, &v.UsageCount, &v.ValidFrom, &v.ValidUntil, &v.IsActive,
		&v.HappyHourStart, &v.HappyHourEnd,
		&v.ApplicableCategories, &v.ApplicableItems, &v.ApplicableBranches,
		&v.CreatedAt, &v.UpdatedAt,
	)
	return v, err
}

// GetVoucherByCode looks up a voucher by its code, case-insensitively.
// Codes are stored upper-cased.
func (q *Queries) GetVoucherByCode(ctx context.Context, code string) (Voucher, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code)))
	return scanVoucher(row)
}

func (q *Queries) GetVoucher(ctx context.Context, id uuid.UUID) (Voucher, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+voucherColumns+` FROM vouchers WHERE id = $1`, id)
	return scanVoucher(row)
}

func (q *Queries) ListVouchers(ctx context.Context) ([]Voucher, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+voucherColumns+` FROM vouchers ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vouchers []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, rows.Err()
}

type CreateVoucherParams struct {
	Code                 string
	Name                 string
	Description          pgtype.Text
	Type                 string
	Value                pgtype.Numeric
	MinPurchase          pgtype.Numeric
	MaxDiscount          pgtype.Numeric
	UsageLimit           pgtype.Int4
	ValidFrom            time.Time
	ValidUntil           time.Time
	HappyHourStart       pgtype.Text
	HappyHourEnd         pgtype.Text
	ApplicableCategories []string
	ApplicableItems      []string
	ApplicableBranches   []string
}

func (q *Queries) CreateVoucher(ctx context.Context, arg CreateVoucherParams) (Voucher, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO vouchers (
			code, name, description, type, value, min_purchase, max_discount,
			usage_limit, valid_from, valid_until, is_active,
			happy_hour_start, happy_hour_end,
			applicable_categories, applicable_items, applicable_branches
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, $11, $12, $13, $14, $15)
		RETURNING `+voucherColumns,
		strings.ToUpper(strings.TrimSpace(arg.Code)), arg.Name, arg.Description, arg.Type,
		arg.Value, arg.MinPurchase, arg.MaxDiscount,
		arg.UsageLimit, arg.ValidFrom, arg.ValidUntil,
		arg.HappyHourStart, arg.HappyHourEnd,
		arg.ApplicableCategories, arg.ApplicableItems, arg.ApplicableBranches)
	return scanVoucher(row)
}

// IncrementVoucherUsage bumps usage_count without checking the limit.
// This is the baseline behavior: under concurrent redemptions the count
// can overshoot the limit by a small margin.
func (q *Queries) IncrementVoucherUsage(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE vouchers SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1`, id)
	return err
}

// ConsumeVoucher atomically increments usage_count only while the limit
// still allows it. Returns pgx.ErrNoRows when the voucher is exhausted,
// so a concurrent over-redemption loses instead of overshooting.
func (q *Queries) ConsumeVoucher(ctx context.Context, id uuid.UUID) (int32, error) {
	var count int32
	err := q.db.QueryRow(ctx, `
		UPDATE vouchers SET usage_count = usage_count + 1, updated_at = now()
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)
		RETURNING usage_count`, id).Scan(&count)
	return count, err
}

func (q *Queries) DeactivateVoucher(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE vouchers SET is_active = false, updated_at = now()
		WHERE id = $1`, id)
	return err
}
