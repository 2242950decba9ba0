package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const attendanceColumns = `id, user_id, branch_id, type, latitude, longitude,
	photo_url, device_id, status, created_at`

func scanAttendance(row interface{ Scan(dest ...any) error }) (AttendanceRecord, error) {
	var a AttendanceRecord
	err := row.Scan(
		&a.ID, &a.UserID, &a.BranchID, &a.Type,
		&a.Latitude, &a.Longitude,
		&a.PhotoURL, &a.DeviceID, &a.Status, &a.CreatedAt,
	)
	return a, err
}

type CreateAttendanceRecordParams struct {
	UserID    uuid.UUID
	BranchID  uuid.UUID
	Type      string
	Latitude  float64
	Longitude float64
	PhotoURL  pgtype.Text
	DeviceID  pgtype.Text
	Status    string
}

func (q *Queries) CreateAttendanceRecord(ctx context.Context, arg CreateAttendanceRecordParams) (AttendanceRecord, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO attendance_records (
			user_id, branch_id, type, latitude, longitude, photo_url, device_id, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+attendanceColumns,
		arg.UserID, arg.BranchID, arg.Type, arg.Latitude, arg.Longitude,
		arg.PhotoURL, arg.DeviceID, arg.Status)
	return scanAttendance(row)
}

type GetLatestAttendanceInRangeParams struct {
	UserID uuid.UUID
	From   time.Time
	To     time.Time
}

// GetLatestAttendanceInRange returns the most recent record for the user
// within [From, To). Callers pass a UTC calendar-day window.
func (q *Queries) GetLatestAttendanceInRange(ctx context.Context, arg GetLatestAttendanceInRangeParams) (AttendanceRecord, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC LIMIT 1`,
		arg.UserID, arg.From, arg.To)
	return scanAttendance(row)
}

type ListAttendanceByBranchParams struct {
	BranchID uuid.UUID
	From     time.Time
	To       time.Time
}

func (q *Queries) ListAttendanceByBranch(ctx context.Context, arg ListAttendanceByBranchParams) ([]AttendanceRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+attendanceColumns+` FROM attendance_records
		WHERE branch_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC`,
		arg.BranchID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []AttendanceRecord
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, a)
	}
	return records, rows.Err()
}
