package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Branch struct {
	ID        uuid.UUID
	Name      string
	Address   pgtype.Text
	Phone     pgtype.Text
	Latitude  pgtype.Float8
	Longitude pgtype.Float8
	MaxRadius pgtype.Int4
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	DeviceID       pgtype.Text
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	BranchID    uuid.UUID
	Name        string
	Category    string
	Price       pgtype.Numeric
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Voucher struct {
	ID                   uuid.UUID
	Code                 string
	Name                 string
	Description          pgtype.Text
	Type                 string
	Value                pgtype.Numeric
	MinPurchase          pgtype.Numeric
	MaxDiscount          pgtype.Numeric
	UsageLimit           pgtype.Int4
	UsageCount           int32
	ValidFrom            time.Time
	ValidUntil           time.Time
	IsActive             bool
	HappyHourStart       pgtype.Text
	HappyHourEnd         pgtype.Text
	ApplicableCategories []string
	ApplicableItems      []string
	ApplicableBranches   []string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Order struct {
	ID             uuid.UUID
	BranchID       uuid.UUID
	OrderNumber    string
	OrderType      string
	Status         string
	TableNumber    pgtype.Text
	Notes          pgtype.Text
	Subtotal       pgtype.Numeric
	VoucherID      pgtype.UUID
	VoucherCode    pgtype.Text
	DiscountAmount pgtype.Numeric
	TotalAmount    pgtype.Numeric
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
	Notes      pgtype.Text
}

type Payment struct {
	ID              uuid.UUID
	OrderID         uuid.UUID
	PaymentMethod   string
	Amount          pgtype.Numeric
	Status          string
	ReferenceNumber pgtype.Text
	AmountReceived  pgtype.Numeric
	ChangeAmount    pgtype.Numeric
	ProcessedBy     pgtype.UUID
	ProcessedAt     time.Time
}

type AttendanceRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	BranchID  uuid.UUID
	Type      string
	Latitude  float64
	Longitude float64
	PhotoURL  pgtype.Text
	DeviceID  pgtype.Text
	Status    string
	CreatedAt time.Time
}
