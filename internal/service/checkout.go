package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/enum"
	"github.com/kopisegar/api/internal/voucher"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the checkout service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidOrderType  = errors.New("invalid order_type")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrMenuItemNotFound  = errors.New("menu item not found in branch")
	ErrInvalidMenuItemID = errors.New("invalid menu_item_id")
)

// VoucherRejectedError carries the engine's user-facing rejection
// message out of the checkout flow. It is a business outcome, not an
// internal failure; handlers surface it as a 422.
type VoucherRejectedError struct {
	Message string
}

func (e *VoucherRejectedError) Error() string { return e.Message }

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type CheckoutStore interface {
	GetNextOrderNumber(ctx context.Context, branchID uuid.UUID) (int32, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	GetVoucherByCode(ctx context.Context, code string) (database.Voucher, error)
	ConsumeVoucher(ctx context.Context, id uuid.UUID) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// NewCheckoutStore creates a CheckoutStore from a DBTX (pool or tx).
type NewCheckoutStore func(db database.DBTX) CheckoutStore

// CheckoutRequest is the validated input for creating an order.
type CheckoutRequest struct {
	BranchID    uuid.UUID
	CreatedBy   uuid.UUID
	OrderType   string
	TableNumber string
	Notes       string
	VoucherCode string
	Items       []CheckoutItemRequest
}

// CheckoutItemRequest is a single line in the order.
type CheckoutItemRequest struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// CheckoutResult is the created order with its items and the applied
// voucher summary (nil when no voucher was used).
type CheckoutResult struct {
	Order   database.Order
	Items   []database.OrderItem
	Voucher *voucher.Summary
}

// CheckoutService handles order creation business logic.
type CheckoutService struct {
	pool     TxBeginner
	newStore NewCheckoutStore
	now      func() time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(pool TxBeginner, newStore NewCheckoutStore) *CheckoutService {
	return &CheckoutService{pool: pool, newStore: newStore, now: time.Now}
}

// pricedItem holds a prepared order item before insertion.
type pricedItem struct {
	params database.CreateOrderItemParams
}

// Checkout validates the request, prices items, applies the voucher, and
// creates the order atomically. Retries on sequence_number unique
// constraint violations (concurrent transactions can read the same MAX).
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if !isValidOrderType(req.OrderType) {
		return nil, ErrInvalidOrderType
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.checkoutTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isSequenceConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isSequenceConflict checks for a unique constraint violation on the
// per-branch order sequence (pgconn error code 23505).
func isSequenceConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_branch_id_sequence_number_key"
	}
	return false
}

// checkoutTx executes the full order creation in a single transaction.
func (s *CheckoutService) checkoutTx(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextNum, err := store.GetNextOrderNumber(ctx, req.BranchID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("KSG-%03d", nextNum)

	// --- Price items ---
	subtotal := decimal.Zero
	var items []pricedItem
	var cartItems []voucher.CartItem

	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}

		menuItem, err := store.GetMenuItem(ctx, database.GetMenuItemParams{
			ID:       menuItemID,
			BranchID: req.BranchID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}

		unitPrice := numericToDecimal(menuItem.Price)
		lineSubtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		subtotal = subtotal.Add(lineSubtotal)

		itemNotes := pgtype.Text{}
		if item.Notes != "" {
			itemNotes = pgtype.Text{String: item.Notes, Valid: true}
		}

		items = append(items, pricedItem{
			params: database.CreateOrderItemParams{
				MenuItemID: menuItemID,
				Quantity:   item.Quantity,
				UnitPrice:  decimalToNumeric(unitPrice),
				Subtotal:   decimalToNumeric(lineSubtotal),
				Notes:      itemNotes,
			},
		})
		cartItems = append(cartItems, voucher.CartItem{
			ID:       menuItemID.String(),
			Category: menuItem.Category,
		})
	}

	// --- Apply voucher ---
	discount := decimal.Zero
	voucherID := pgtype.UUID{}
	voucherCode := pgtype.Text{}
	var summary *voucher.Summary

	if req.VoucherCode != "" {
		rec, err := store.GetVoucherByCode(ctx, req.VoucherCode)
		var v *voucher.Voucher
		switch {
		case err == nil:
			v = VoucherFromRecord(rec)
		case errors.Is(err, pgx.ErrNoRows):
			v = nil
		default:
			return nil, fmt.Errorf("get voucher: %w", err)
		}

		res := voucher.Validate(v, voucher.Cart{
			Total:    subtotal,
			Items:    cartItems,
			BranchID: req.BranchID.String(),
		}, s.now())
		if !res.Valid {
			return nil, &VoucherRejectedError{Message: res.Message}
		}

		// Consume a use atomically; a concurrent redemption that would
		// push past the limit loses here instead of overshooting.
		if _, err := store.ConsumeVoucher(ctx, rec.ID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &VoucherRejectedError{Message: "Voucher usage limit has been reached"}
			}
			return nil, fmt.Errorf("consume voucher: %w", err)
		}

		discount = decimal.NewFromInt(res.Discount)
		voucherID = pgtype.UUID{Bytes: rec.ID, Valid: true}
		voucherCode = pgtype.Text{String: rec.Code, Valid: true}
		summary = res.Voucher
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	tableNumber := pgtype.Text{}
	if req.TableNumber != "" {
		tableNumber = pgtype.Text{String: req.TableNumber, Valid: true}
	}
	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		BranchID:       req.BranchID,
		OrderNumber:    orderNumber,
		SequenceNumber: nextNum,
		OrderType:      req.OrderType,
		TableNumber:    tableNumber,
		Notes:          notes,
		Subtotal:       decimalToNumeric(subtotal),
		VoucherID:      voucherID,
		VoucherCode:    voucherCode,
		DiscountAmount: decimalToNumeric(discount),
		TotalAmount:    decimalToNumeric(total),
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var created []database.OrderItem
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		created = append(created, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CheckoutResult{Order: order, Items: created, Voucher: summary}, nil
}

// --- Helpers ---

func isValidOrderType(s string) bool {
	switch s {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway, enum.OrderTypeOnline:
		return true
	}
	return false
}

// VoucherFromRecord converts a stored voucher row into the engine's
// input type.
func VoucherFromRecord(rec database.Voucher) *voucher.Voucher {
	v := &voucher.Voucher{
		ID:                   rec.ID,
		Code:                 rec.Code,
		Name:                 rec.Name,
		Type:                 rec.Type,
		Value:                numericToDecimal(rec.Value),
		MinPurchase:          numericToDecimal(rec.MinPurchase),
		UsageCount:           rec.UsageCount,
		ValidFrom:            rec.ValidFrom,
		ValidUntil:           rec.ValidUntil,
		Active:               rec.IsActive,
		ApplicableCategories: rec.ApplicableCategories,
		ApplicableItems:      rec.ApplicableItems,
		ApplicableBranches:   rec.ApplicableBranches,
	}
	if rec.Description.Valid {
		v.Description = rec.Description.String
	}
	if rec.MaxDiscount.Valid {
		md := numericToDecimal(rec.MaxDiscount)
		v.MaxDiscount = &md
	}
	if rec.UsageLimit.Valid {
		limit := rec.UsageLimit.Int32
		v.UsageLimit = &limit
	}
	if rec.HappyHourStart.Valid {
		v.HappyHourStart = rec.HappyHourStart.String
	}
	if rec.HappyHourEnd.Valid {
		v.HappyHourEnd = rec.HappyHourEnd.String
	}
	return v
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
