package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const branchColumns = `id, name, address, phone, latitude, longitude, max_radius, is_active, created_at, updated_at`

func scanBranch(row interface{ Scan(dest ...any) error }) (Branch, error) {
	var b Branch
	err := row.Scan(
		&b.ID, &b.Name, &b.Address, &b.Phone,
		&b.Latitude, &b.Longitude, &b.MaxRadius,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (q *Queries) GetBranch(ctx context.Context, id uuid.UUID) (Branch, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE id = $1 AND is_active = true`, id)
	return scanBranch(row)
}

func (q *Queries) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE is_active = true ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

type CreateBranchParams struct {
	Name      string
	Address   pgtype.Text
	Phone     pgtype.Text
	Latitude  pgtype.Float8
	Longitude pgtype.Float8
	MaxRadius pgtype.Int4
}

func (q *Queries) CreateBranch(ctx context.Context, arg CreateBranchParams) (Branch, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO branches (name, address, phone, latitude, longitude, max_radius, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING `+branchColumns,
		arg.Name, arg.Address, arg.Phone, arg.Latitude, arg.Longitude, arg.MaxRadius)
	return scanBranch(row)
}
