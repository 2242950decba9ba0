package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kopisegar/api/internal/database"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetMenuItemSales(ctx context.Context, arg database.GetMenuItemSalesParams) ([]database.GetMenuItemSalesRow, error)
	GetPaymentSummary(ctx context.Context, arg database.GetPaymentSummaryParams) ([]database.GetPaymentSummaryRow, error)
	GetHourlySales(ctx context.Context, arg database.GetHourlySalesParams) ([]database.GetHourlySalesRow, error)
	GetBranchComparison(ctx context.Context, arg database.GetBranchComparisonParams) ([]database.GetBranchComparisonRow, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers branch-scoped report endpoints.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/reports
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/daily-sales", h.DailySales)
	r.Get("/menu-sales", h.MenuItemSales)
	r.Get("/payment-summary", h.PaymentSummary)
	r.Get("/hourly-sales", h.HourlySales)
}

// RegisterOwnerRoutes registers owner-only report endpoints.
// Expected to be mounted at the root level: /reports
func (h *ReportsHandler) RegisterOwnerRoutes(r chi.Router) {
	r.Get("/branch-comparison", h.BranchComparison)
}

// --- Response types ---

type dailySalesResponse struct {
	Date          string `json:"date"`
	OrderCount    int64  `json:"order_count"`
	TotalRevenue  string `json:"total_revenue"`
	TotalDiscount string `json:"total_discount"`
	NetRevenue    string `json:"net_revenue"`
}

type menuItemSalesResponse struct {
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	MenuItemName string    `json:"menu_item_name"`
	Category     string    `json:"category"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

type paymentSummaryResponse struct {
	PaymentMethod    string `json:"payment_method"`
	TransactionCount int64  `json:"transaction_count"`
	TotalAmount      string `json:"total_amount"`
}

type hourlySalesResponse struct {
	Hour         int32  `json:"hour"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
}

type branchComparisonResponse struct {
	BranchID     uuid.UUID `json:"branch_id"`
	BranchName   string    `json:"branch_name"`
	OrderCount   int64     `json:"order_count"`
	TotalRevenue string    `json:"total_revenue"`
}

// --- Handlers ---

// DailySales returns per-day completed sales totals for a date range.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		BranchID: branchID,
		From:     from,
		To:       to,
	})
	if err != nil {
		log.Printf("ERROR: get daily sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.SaleDate.Valid {
			date = row.SaleDate.Time.Format("2006-01-02")
		}
		resp[i] = dailySalesResponse{
			Date:          date,
			OrderCount:    row.OrderCount,
			TotalRevenue:  numericToString(row.TotalRevenue),
			TotalDiscount: numericToString(row.TotalDiscount),
			NetRevenue:    numericToString(row.NetRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// MenuItemSales returns top selling menu items by quantity and revenue.
func (h *ReportsHandler) MenuItemSales(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := h.store.GetMenuItemSales(r.Context(), database.GetMenuItemSalesParams{
		BranchID: branchID,
		From:     from,
		To:       to,
		Limit:    int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: get menu item sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = menuItemSalesResponse{
			MenuItemID:   row.MenuItemID,
			MenuItemName: row.MenuItemName,
			Category:     row.Category,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// PaymentSummary returns breakdown of completed payments by method.
func (h *ReportsHandler) PaymentSummary(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetPaymentSummary(r.Context(), database.GetPaymentSummaryParams{
		BranchID: branchID,
		From:     from,
		To:       to,
	})
	if err != nil {
		log.Printf("ERROR: get payment summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentSummaryResponse, len(rows))
	for i, row := range rows {
		resp[i] = paymentSummaryResponse{
			PaymentMethod:    row.PaymentMethod,
			TransactionCount: row.TransactionCount,
			TotalAmount:      numericToString(row.TotalAmount),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HourlySales returns sales per hour for peak hour analysis.
func (h *ReportsHandler) HourlySales(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetHourlySales(r.Context(), database.GetHourlySalesParams{
		BranchID: branchID,
		From:     from,
		To:       to,
	})
	if err != nil {
		log.Printf("ERROR: get hourly sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]hourlySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = hourlySalesResponse{
			Hour:         row.Hour,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// BranchComparison returns cross-branch revenue comparison. The router
// gates this behind OWNER.
func (h *ReportsHandler) BranchComparison(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetBranchComparison(r.Context(), database.GetBranchComparisonParams{
		From: from,
		To:   to,
	})
	if err != nil {
		log.Printf("ERROR: get branch comparison: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]branchComparisonResponse, len(rows))
	for i, row := range rows {
		resp[i] = branchComparisonResponse{
			BranchID:     row.BranchID,
			BranchName:   row.BranchName,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange parses start_date and end_date query params in Asia/Jakarta
// time, matching where the branches operate. Defaults to the last 30 days.
// The returned end is exclusive (next day midnight).
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*3600)
	}

	now := time.Now().In(loc)

	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -30)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		start = t
	}

	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before end_date")
	}

	return start, end, nil
}
