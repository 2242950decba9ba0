package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, branch_id, email, hashed_password, full_name, role, device_id, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...any) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.BranchID, &u.Email, &u.HashedPassword,
		&u.FullName, &u.Role, &u.DeviceID,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

type CreateUserParams struct {
	BranchID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (branch_id, email, hashed_password, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		RETURNING `+userColumns,
		arg.BranchID, arg.Email, arg.HashedPassword, arg.FullName, arg.Role)
	return scanUser(row)
}

func (q *Queries) ListUsersByBranch(ctx context.Context, branchID uuid.UUID) ([]User, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		WHERE branch_id = $1 AND is_active
		ORDER BY full_name`, branchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type UpdateUserParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
	Email    string
	FullName string
	Role     string
}

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users
		SET email = $3, full_name = $4, role = $5, updated_at = now()
		WHERE id = $1 AND branch_id = $2
		RETURNING `+userColumns,
		arg.ID, arg.BranchID, arg.Email, arg.FullName, arg.Role)
	return scanUser(row)
}

type DeactivateUserParams struct {
	ID       uuid.UUID
	BranchID uuid.UUID
}

// DeactivateUser soft-deletes a user; deactivated staff keep their
// attendance history but can no longer log in or clock in.
func (q *Queries) DeactivateUser(ctx context.Context, arg DeactivateUserParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx, `
		UPDATE users SET is_active = false, updated_at = now()
		WHERE id = $1 AND branch_id = $2 AND is_active
		RETURNING id`,
		arg.ID, arg.BranchID).Scan(&id)
	return id, err
}

type BindUserDeviceParams struct {
	ID       uuid.UUID
	DeviceID pgtype.Text
}

// BindUserDevice records the first device a user clocks in from.
// First write wins: the device_id is only set when it is still NULL.
func (q *Queries) BindUserDevice(ctx context.Context, arg BindUserDeviceParams) error {
	_, err := q.db.Exec(ctx, `
		UPDATE users SET device_id = $2, updated_at = now()
		WHERE id = $1 AND device_id IS NULL`,
		arg.ID, arg.DeviceID)
	return err
}
