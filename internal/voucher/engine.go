package voucher

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kopisegar/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Input errors. Business-rule rejections are NOT errors; they come back
// as a Result with Valid=false and a user-facing message.
var (
	ErrMissingCode      = errors.New("voucher code is required")
	ErrMissingCartTotal = errors.New("cart_total is required")
)

// Voucher is the immutable record validated against a cart. The engine
// never mutates it; usage_count is incremented by the caller after the
// order commits.
type Voucher struct {
	ID                   uuid.UUID
	Code                 string
	Name                 string
	Description          string
	Type                 string
	Value                decimal.Decimal
	MinPurchase          decimal.Decimal
	MaxDiscount          *decimal.Decimal
	UsageLimit           *int32
	UsageCount           int32
	ValidFrom            time.Time
	ValidUntil           time.Time
	Active               bool
	HappyHourStart       string
	HappyHourEnd         string
	ApplicableCategories []string
	ApplicableItems      []string
	ApplicableBranches   []string
}

// CartItem is the minimal view of a cart line the engine needs.
type CartItem struct {
	ID       string
	Category string
}

// Cart is the validation context: subtotal before discount, the items,
// and the branch the order is placed at (empty when unknown).
type Cart struct {
	Total    decimal.Decimal
	Items    []CartItem
	BranchID string
}

// Summary echoes the applied voucher back to the caller.
type Summary struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        string    `json:"type"`
	Value       string    `json:"value"`
}

// Result is the outcome of a validation. Discount is set only when Valid.
type Result struct {
	Valid    bool
	Message  string
	Discount int64
	Voucher  *Summary
}

func reject(message string) Result {
	return Result{Valid: false, Message: message}
}

// Validate decides whether the voucher may be applied to the cart at the
// given instant and computes the discount. The checks run in a fixed
// order and stop at the first failure, so rejection messages are
// deterministic. A nil voucher means the code lookup found nothing.
func Validate(v *Voucher, cart Cart, now time.Time) Result {
	if v == nil {
		return reject("Invalid voucher code")
	}

	if !v.Active {
		return reject("Voucher is no longer active")
	}

	if now.Before(v.ValidFrom) {
		return reject("Voucher is not valid yet")
	}
	if now.After(v.ValidUntil) {
		return reject("Voucher has expired")
	}

	if v.HappyHourStart != "" && v.HappyHourEnd != "" {
		clock := now.Format("15:04")
		if clock < v.HappyHourStart || clock > v.HappyHourEnd {
			return reject(fmt.Sprintf("Voucher is only valid between %s and %s", v.HappyHourStart, v.HappyHourEnd))
		}
	}

	if len(v.ApplicableCategories) > 0 && !anyItemMatches(cart.Items, v.ApplicableCategories, func(it CartItem) string { return it.Category }) {
		return reject("Voucher only applies to selected categories")
	}

	if v.UsageLimit != nil && v.UsageCount >= *v.UsageLimit {
		return reject("Voucher usage limit has been reached")
	}

	if cart.Total.LessThan(v.MinPurchase) {
		return reject(fmt.Sprintf("Minimum purchase of %s is required", v.MinPurchase.StringFixed(0)))
	}

	if len(v.ApplicableItems) > 0 && !anyItemMatches(cart.Items, v.ApplicableItems, func(it CartItem) string { return it.ID }) {
		return reject("Voucher only applies to selected items")
	}

	if len(v.ApplicableBranches) > 0 {
		if cart.BranchID == "" {
			return reject("Voucher requires a branch to be selected")
		}
		if !contains(v.ApplicableBranches, cart.BranchID) {
			return reject("Voucher is not valid at this branch")
		}
	}

	discount, ok := computeDiscount(v, cart.Total)
	if !ok {
		return reject("Unknown voucher type")
	}

	return Result{
		Valid:    true,
		Message:  "Voucher applied",
		Discount: discount,
		Voucher: &Summary{
			ID:          v.ID,
			Code:        v.Code,
			Name:        v.Name,
			Description: v.Description,
			Type:        v.Type,
			Value:       v.Value.String(),
		},
	}
}

// computeDiscount evaluates the voucher type against the cart total and
// rounds half-up to whole rupiah. Returns ok=false for an unknown type.
func computeDiscount(v *Voucher, cartTotal decimal.Decimal) (int64, bool) {
	var discount decimal.Decimal

	switch v.Type {
	case enum.VoucherTypePercentage:
		discount = cartTotal.Mul(v.Value).Div(decimal.NewFromInt(100))
		if v.MaxDiscount != nil && discount.GreaterThan(*v.MaxDiscount) {
			discount = *v.MaxDiscount
		}
	case enum.VoucherTypeFixedAmount:
		discount = v.Value
		if discount.GreaterThan(cartTotal) {
			discount = cartTotal
		}
	case enum.VoucherTypeFreeItem, enum.VoucherTypeBuyXGetY:
		// Value carries the pre-computed credit (free item price or
		// bundle credit); the engine does not analyze quantities.
		discount = v.Value
	default:
		return 0, false
	}

	if discount.IsNegative() {
		discount = decimal.Zero
	}
	// Round half away from zero; for non-negative discounts this is
	// round half-up.
	return discount.Round(0).IntPart(), true
}

// NormalizeCode upper-cases and trims a voucher code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func anyItemMatches(items []CartItem, allowList []string, key func(CartItem) string) bool {
	for _, it := range items {
		if contains(allowList, key(it)) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
