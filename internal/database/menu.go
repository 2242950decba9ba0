package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, branch_id, name, category, price, is_available, created_at, updated_at`

func scanMenuItem(row interface{ Scan(dest ...any) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID, &m.BranchID, &m.Name, &m.Category,
		&m.Price, &m.IsAvailable, &m.CreatedAt, &m.UpdatedAt,
	)
	return m, err
}

type GetMenuItemParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items
		 WHERE id = $1 AND branch_id = $2 AND is_available = true`,
		arg.ID, arg.BranchID)
	return scanMenuItem(row)
}

func (q *Queries) ListMenuItems(ctx context.Context, branchID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+menuItemColumns+` FROM menu_items
		 WHERE branch_id = $1 AND is_available = true ORDER BY category, name`,
		branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type CreateMenuItemParams struct {
	BranchID uuid.UUID
	Name     string
	Category string
	Price    pgtype.Numeric
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (branch_id, name, category, price, is_available)
		VALUES ($1, $2, $3, $4, true)
		RETURNING `+menuItemColumns,
		arg.BranchID, arg.Name, arg.Category, arg.Price)
	return scanMenuItem(row)
}

type SetMenuItemAvailabilityParams struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	IsAvailable bool
}

func (q *Queries) SetMenuItemAvailability(ctx context.Context, arg SetMenuItemAvailabilityParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_items SET is_available = $3, updated_at = now()
		WHERE id = $1 AND branch_id = $2
		RETURNING `+menuItemColumns,
		arg.ID, arg.BranchID, arg.IsAvailable)
	return scanMenuItem(row)
}
