package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/enum"
	"github.com/kopisegar/api/internal/service"
	"github.com/kopisegar/api/internal/voucher"
	"github.com/shopspring/decimal"
)

// VoucherStore defines the database methods needed by voucher handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type VoucherStore interface {
	GetVoucherByCode(ctx context.Context, code string) (database.Voucher, error)
	GetVoucher(ctx context.Context, id uuid.UUID) (database.Voucher, error)
	ListVouchers(ctx context.Context) ([]database.Voucher, error)
	CreateVoucher(ctx context.Context, arg database.CreateVoucherParams) (database.Voucher, error)
	DeactivateVoucher(ctx context.Context, id uuid.UUID) error
}

// VoucherHandler handles voucher endpoints.
type VoucherHandler struct {
	store VoucherStore
	now   func() time.Time
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(store VoucherStore) *VoucherHandler {
	return &VoucherHandler{store: store, now: time.Now}
}

// RegisterRoutes registers voucher endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/vouchers
func (h *VoucherHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/validate", h.Validate)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Deactivate)
}

// --- Request / Response types ---

type createVoucherRequest struct {
	Code                 string   `json:"code"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Type                 string   `json:"type"`
	Value                string   `json:"value"`
	MinPurchase          string   `json:"min_purchase"`
	MaxDiscount          string   `json:"max_discount"`
	UsageLimit           *int32   `json:"usage_limit"`
	ValidFrom            string   `json:"valid_from"`
	ValidUntil           string   `json:"valid_until"`
	HappyHourStart       string   `json:"happy_hour_start"`
	HappyHourEnd         string   `json:"happy_hour_end"`
	ApplicableCategories []string `json:"applicable_categories"`
	ApplicableItems      []string `json:"applicable_items"`
	ApplicableBranches   []string `json:"applicable_branches"`
}

type validateVoucherRequest struct {
	Code      string                `json:"code"`
	CartTotal string                `json:"cart_total"`
	Items     []validateItemRequest `json:"items"`
}

type validateItemRequest struct {
	ID       string `json:"id"`
	Category string `json:"category"`
}

type validateVoucherResponse struct {
	Valid    bool             `json:"valid"`
	Message  string           `json:"message"`
	Discount int64            `json:"discount"`
	Voucher  *voucher.Summary `json:"voucher,omitempty"`
}

type voucherResponse struct {
	ID                   uuid.UUID `json:"id"`
	Code                 string    `json:"code"`
	Name                 string    `json:"name"`
	Description          *string   `json:"description"`
	Type                 string    `json:"type"`
	Value                string    `json:"value"`
	MinPurchase          string    `json:"min_purchase"`
	MaxDiscount          *string   `json:"max_discount"`
	UsageLimit           *int32    `json:"usage_limit"`
	UsageCount           int32     `json:"usage_count"`
	ValidFrom            time.Time `json:"valid_from"`
	ValidUntil           time.Time `json:"valid_until"`
	IsActive             bool      `json:"is_active"`
	HappyHourStart       *string   `json:"happy_hour_start"`
	HappyHourEnd         *string   `json:"happy_hour_end"`
	ApplicableCategories []string  `json:"applicable_categories"`
	ApplicableItems      []string  `json:"applicable_items"`
	ApplicableBranches   []string  `json:"applicable_branches"`
	CreatedAt            time.Time `json:"created_at"`
}

// --- Handlers ---

// Validate handles POST /branches/{bid}/vouchers/validate. A voucher
// that fails a business rule is still a 200; the outcome rides in the
// body. Only malformed input is a 400.
func (h *VoucherHandler) Validate(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	var req validateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": voucher.ErrMissingCode.Error()})
		return
	}
	if req.CartTotal == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": voucher.ErrMissingCartTotal.Error()})
		return
	}
	cartTotal, err := decimal.NewFromString(req.CartTotal)
	if err != nil || cartTotal.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart_total must be a non-negative number"})
		return
	}

	var v *voucher.Voucher
	rec, err := h.store.GetVoucherByCode(r.Context(), voucher.NormalizeCode(req.Code))
	if err == nil {
		v = service.VoucherFromRecord(rec)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: get voucher by code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	cartItems := make([]voucher.CartItem, len(req.Items))
	for i, item := range req.Items {
		cartItems[i] = voucher.CartItem{ID: item.ID, Category: item.Category}
	}

	result := voucher.Validate(v, voucher.Cart{
		Total:    cartTotal,
		Items:    cartItems,
		BranchID: branchID.String(),
	}, h.now())

	writeJSON(w, http.StatusOK, validateVoucherResponse{
		Valid:    result.Valid,
		Message:  result.Message,
		Discount: result.Discount,
		Voucher:  result.Voucher,
	})
}

// Create handles POST /branches/{bid}/vouchers.
func (h *VoucherHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !isValidVoucherType(req.Type) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid voucher type"})
		return
	}

	value, err := decimal.NewFromString(req.Value)
	if err != nil || value.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value must be a non-negative number"})
		return
	}

	minPurchase := decimal.Zero
	if req.MinPurchase != "" {
		minPurchase, err = decimal.NewFromString(req.MinPurchase)
		if err != nil || minPurchase.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "min_purchase must be a non-negative number"})
			return
		}
	}

	var maxDiscount pgtype.Numeric
	if req.MaxDiscount != "" {
		md, err := decimal.NewFromString(req.MaxDiscount)
		if err != nil || md.IsNegative() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_discount must be a non-negative number"})
			return
		}
		maxDiscount = decimalToNumeric(md)
	}

	validFrom, err := time.Parse(time.RFC3339, req.ValidFrom)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid valid_from, use RFC3339"})
		return
	}
	validUntil, err := time.Parse(time.RFC3339, req.ValidUntil)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid valid_until, use RFC3339"})
		return
	}
	if validUntil.Before(validFrom) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "valid_until must not be before valid_from"})
		return
	}

	if (req.HappyHourStart == "") != (req.HappyHourEnd == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "happy_hour_start and happy_hour_end must be set together"})
		return
	}
	if req.HappyHourStart != "" {
		if !isValidClock(req.HappyHourStart) || !isValidClock(req.HappyHourEnd) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "happy hour bounds must be HH:MM"})
			return
		}
	}

	var usageLimit pgtype.Int4
	if req.UsageLimit != nil {
		if *req.UsageLimit <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "usage_limit must be > 0"})
			return
		}
		usageLimit = pgtype.Int4{Int32: *req.UsageLimit, Valid: true}
	}

	var description pgtype.Text
	if req.Description != "" {
		description = pgtype.Text{String: req.Description, Valid: true}
	}
	var hhStart, hhEnd pgtype.Text
	if req.HappyHourStart != "" {
		hhStart = pgtype.Text{String: req.HappyHourStart, Valid: true}
		hhEnd = pgtype.Text{String: req.HappyHourEnd, Valid: true}
	}

	created, err := h.store.CreateVoucher(r.Context(), database.CreateVoucherParams{
		Code:                 req.Code,
		Name:                 req.Name,
		Description:          description,
		Type:                 req.Type,
		Value:                decimalToNumeric(value),
		MinPurchase:          decimalToNumeric(minPurchase),
		MaxDiscount:          maxDiscount,
		UsageLimit:           usageLimit,
		ValidFrom:            validFrom,
		ValidUntil:           validUntil,
		HappyHourStart:       hhStart,
		HappyHourEnd:         hhEnd,
		ApplicableCategories: req.ApplicableCategories,
		ApplicableItems:      req.ApplicableItems,
		ApplicableBranches:   req.ApplicableBranches,
	})
	if err != nil {
		log.Printf("ERROR: create voucher: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbVoucherToResponse(created))
}

// List handles GET /branches/{bid}/vouchers.
func (h *VoucherHandler) List(w http.ResponseWriter, r *http.Request) {
	vouchers, err := h.store.ListVouchers(r.Context())
	if err != nil {
		log.Printf("ERROR: list vouchers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]voucherResponse, len(vouchers))
	for i, v := range vouchers {
		resp[i] = dbVoucherToResponse(v)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /branches/{bid}/vouchers/{id}.
func (h *VoucherHandler) Get(w http.ResponseWriter, r *http.Request) {
	voucherID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid voucher ID"})
		return
	}

	v, err := h.store.GetVoucher(r.Context(), voucherID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "voucher not found"})
			return
		}
		log.Printf("ERROR: get voucher: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbVoucherToResponse(v))
}

// Deactivate handles DELETE /branches/{bid}/vouchers/{id}.
// Vouchers are never hard-deleted; redeemed orders keep referencing them.
func (h *VoucherHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	voucherID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid voucher ID"})
		return
	}

	if _, err := h.store.GetVoucher(r.Context(), voucherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "voucher not found"})
			return
		}
		log.Printf("ERROR: get voucher for deactivate: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.store.DeactivateVoucher(r.Context(), voucherID); err != nil {
		log.Printf("ERROR: deactivate voucher: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// --- Helpers ---

func isValidVoucherType(t string) bool {
	switch t {
	case enum.VoucherTypePercentage,
		enum.VoucherTypeFixedAmount,
		enum.VoucherTypeFreeItem,
		enum.VoucherTypeBuyXGetY:
		return true
	}
	return false
}

// isValidClock checks an "HH:MM" wall-clock bound.
func isValidClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

func dbVoucherToResponse(v database.Voucher) voucherResponse {
	resp := voucherResponse{
		ID:                   v.ID,
		Code:                 v.Code,
		Name:                 v.Name,
		Type:                 v.Type,
		Value:                numericToString(v.Value),
		MinPurchase:          numericToString(v.MinPurchase),
		UsageCount:           v.UsageCount,
		ValidFrom:            v.ValidFrom,
		ValidUntil:           v.ValidUntil,
		IsActive:             v.IsActive,
		ApplicableCategories: v.ApplicableCategories,
		ApplicableItems:      v.ApplicableItems,
		ApplicableBranches:   v.ApplicableBranches,
		CreatedAt:            v.CreatedAt,
	}
	if v.Description.Valid {
		resp.Description = &v.Description.String
	}
	if v.MaxDiscount.Valid {
		s := numericToString(v.MaxDiscount)
		resp.MaxDiscount = &s
	}
	if v.UsageLimit.Valid {
		limit := v.UsageLimit.Int32
		resp.UsageLimit = &limit
	}
	if v.HappyHourStart.Valid {
		resp.HappyHourStart = &v.HappyHourStart.String
	}
	if v.HappyHourEnd.Valid {
		resp.HappyHourEnd = &v.HappyHourEnd.String
	}
	return resp
}
