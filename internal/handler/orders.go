package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/enum"
	"github.com/kopisegar/api/internal/middleware"
	"github.com/kopisegar/api/internal/service"
	"github.com/kopisegar/api/internal/voucher"
	"github.com/kopisegar/api/internal/ws"
	"github.com/shopspring/decimal"
)

// CheckoutServicer defines the service methods needed by order handlers.
// Satisfied by *service.CheckoutService; narrow interface for testability.
type CheckoutServicer interface {
	Checkout(ctx context.Context, req service.CheckoutRequest) (*service.CheckoutResult, error)
}

// OrderStore defines the database methods needed by order read/update handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
}

// Broadcaster pushes order events to kitchen displays subscribed to a
// branch. Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToBranch(branchID uuid.UUID, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   CheckoutServicer
	store OrderStore
	hub   Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc CheckoutServicer, store OrderStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	OrderType   string                   `json:"order_type"`
	TableNumber string                   `json:"table_number"`
	Notes       string                   `json:"notes"`
	VoucherCode string                   `json:"voucher_code"`
	Items       []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type orderResponse struct {
	ID             uuid.UUID           `json:"id"`
	BranchID       uuid.UUID           `json:"branch_id"`
	OrderNumber    string              `json:"order_number"`
	OrderType      string              `json:"order_type"`
	Status         string              `json:"status"`
	TableNumber    *string             `json:"table_number"`
	Notes          *string             `json:"notes"`
	Subtotal       string              `json:"subtotal"`
	VoucherCode    *string             `json:"voucher_code"`
	DiscountAmount string              `json:"discount_amount"`
	TotalAmount    string              `json:"total_amount"`
	CreatedBy      uuid.UUID           `json:"created_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	Items          []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
	Notes      *string   `json:"notes"`
}

type paymentResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderID         uuid.UUID `json:"order_id"`
	PaymentMethod   string    `json:"payment_method"`
	Amount          string    `json:"amount"`
	Status          string    `json:"status"`
	ReferenceNumber *string   `json:"reference_number"`
	AmountReceived  *string   `json:"amount_received"`
	ChangeAmount    *string   `json:"change_amount"`
	ProcessedBy     *string   `json:"processed_by"`
	ProcessedAt     time.Time `json:"processed_at"`
}

// createOrderResponse includes the applied voucher summary so the POS
// can show what was deducted.
type createOrderResponse struct {
	orderResponse
	Voucher *voucher.Summary `json:"voucher"`
}

// orderDetailResponse extends orderResponse with payments for the GET detail endpoint.
type orderDetailResponse struct {
	orderResponse
	Payments []paymentResponse `json:"payments"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

// --- Handlers ---

// Create handles POST /branches/{bid}/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "order_type is required"})
		return
	}

	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	for i, item := range req.Items {
		if item.MenuItemID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "menu_item_id is required"),
			})
			return
		}
		if item.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": formatItemError(i, "quantity must be > 0"),
			})
			return
		}
	}

	svcItems := make([]service.CheckoutItemRequest, len(req.Items))
	for i, item := range req.Items {
		svcItems[i] = service.CheckoutItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
	}

	result, err := h.svc.Checkout(r.Context(), service.CheckoutRequest{
		BranchID:    branchID,
		CreatedBy:   claims.UserID,
		OrderType:   req.OrderType,
		TableNumber: req.TableNumber,
		Notes:       req.Notes,
		VoucherCode: req.VoucherCode,
		Items:       svcItems,
	})
	if err != nil {
		// A rejected voucher is a business outcome, not bad syntax.
		var rejected *service.VoucherRejectedError
		if errors.As(err, &rejected) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": rejected.Message})
			return
		}
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: checkout: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := createOrderResponse{
		orderResponse: toOrderResponse(result),
		Voucher:       result.Voucher,
	}

	h.broadcastOrderEvent("order.created", result.Order)

	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /branches/{bid}/orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	// Parse pagination
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := database.ListOrdersParams{
		BranchID: branchID,
		Limit:    int32(limit),
		Offset:   int32(offset),
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !isValidOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /branches/{bid}/orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:       orderID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	itemResps := make([]orderItemResponse, len(items))
	for i, item := range items {
		itemResps[i] = dbOrderItemToResponse(item)
	}

	paymentResps := make([]paymentResponse, len(payments))
	for i, p := range payments {
		paymentResps[i] = dbPaymentToResponse(p)
	}

	orderResp := dbOrderToResponse(order)
	orderResp.Items = itemResps

	writeJSON(w, http.StatusOK, orderDetailResponse{
		orderResponse: orderResp,
		Payments:      paymentResps,
	})
}

// UpdateStatus handles PATCH /branches/{bid}/orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	if !isValidOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	// Fetch current order to validate transition
	current, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:       orderID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for status update: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := validateStatusTransition(current.Status, req.Status); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}

	updated, err := h.store.UpdateOrderStatus(r.Context(), database.UpdateOrderStatusParams{
		ID:       orderID,
		BranchID: branchID,
		Status:   req.Status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order status changed, please retry"})
			return
		}
		log.Printf("ERROR: update order status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcastOrderEvent("order.updated", updated)

	writeJSON(w, http.StatusOK, dbOrderToResponse(updated))
}

// Cancel handles DELETE /branches/{bid}/orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	// The SQL enforces the precondition atomically: it only updates if
	// the order exists AND is not COMPLETED or CANCELLED.
	cancelled, err := h.store.CancelOrder(r.Context(), database.CancelOrderParams{
		ID:       orderID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// No rows updated means either: order doesn't exist, or already
			// COMPLETED/CANCELLED. Fetch to give a better error message.
			current, fetchErr := h.store.GetOrder(r.Context(), database.GetOrderParams{
				ID:       orderID,
				BranchID: branchID,
			})
			if fetchErr != nil {
				if errors.Is(fetchErr, pgx.ErrNoRows) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
					return
				}
				log.Printf("ERROR: get order for cancel: %v", fetchErr)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
			if current.Status == enum.OrderStatusCompleted {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot cancel a completed order"})
				return
			}
			if current.Status == enum.OrderStatusCancelled {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already cancelled"})
				return
			}
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order cannot be cancelled"})
			return
		}
		log.Printf("ERROR: cancel order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.broadcastOrderEvent("order.updated", cancelled)

	writeJSON(w, http.StatusOK, dbOrderToResponse(cancelled))
}

// --- Helpers ---

func formatItemError(idx int, msg string) string {
	return "items[" + strconv.Itoa(idx) + "]: " + msg
}

// isValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidOrderType) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrInvalidMenuItemID)
}

// broadcastOrderEvent pushes an order snapshot to the branch's kitchen room.
func (h *OrderHandler) broadcastOrderEvent(eventType string, order database.Order) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(dbOrderToResponse(order))
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToBranch(order.BranchID, ws.Event{Type: eventType, Payload: payload})
}

func toOrderResponse(result *service.CheckoutResult) orderResponse {
	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	return resp
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
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
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return pgtype.Numeric{}
	}
	return n
}

// dbOrderToResponse converts a database.Order to an orderResponse.
func dbOrderToResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:             o.ID,
		BranchID:       o.BranchID,
		OrderNumber:    o.OrderNumber,
		OrderType:      o.OrderType,
		Status:         o.Status,
		Subtotal:       numericToString(o.Subtotal),
		DiscountAmount: numericToString(o.DiscountAmount),
		TotalAmount:    numericToString(o.TotalAmount),
		CreatedBy:      o.CreatedBy,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}

	if o.TableNumber.Valid {
		resp.TableNumber = &o.TableNumber.String
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.VoucherCode.Valid {
		resp.VoucherCode = &o.VoucherCode.String
	}

	return resp
}

// dbOrderItemToResponse converts a database.OrderItem to an orderItemResponse.
func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		Subtotal:   numericToString(item.Subtotal),
	}
	if item.Notes.Valid {
		resp.Notes = &item.Notes.String
	}
	return resp
}

// dbPaymentToResponse converts a database.Payment to a paymentResponse.
func dbPaymentToResponse(p database.Payment) paymentResponse {
	resp := paymentResponse{
		ID:            p.ID,
		OrderID:       p.OrderID,
		PaymentMethod: p.PaymentMethod,
		Amount:        numericToString(p.Amount),
		Status:        p.Status,
		ProcessedAt:   p.ProcessedAt,
	}
	if p.ReferenceNumber.Valid {
		resp.ReferenceNumber = &p.ReferenceNumber.String
	}
	if p.AmountReceived.Valid {
		s := numericToString(p.AmountReceived)
		resp.AmountReceived = &s
	}
	if p.ChangeAmount.Valid {
		s := numericToString(p.ChangeAmount)
		resp.ChangeAmount = &s
	}
	if p.ProcessedBy.Valid {
		s := uuid.UUID(p.ProcessedBy.Bytes).String()
		resp.ProcessedBy = &s
	}
	return resp
}

// isValidOrderStatus checks if the given status is a valid order status.
func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusNew,
		enum.OrderStatusPreparing,
		enum.OrderStatusReady,
		enum.OrderStatusCompleted,
		enum.OrderStatusCancelled:
		return true
	}
	return false
}

// allowedTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
var allowedTransitions = map[string][]string{
	enum.OrderStatusNew:       {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing: {enum.OrderStatusReady, enum.OrderStatusCancelled},
	enum.OrderStatusReady:     {enum.OrderStatusCompleted, enum.OrderStatusCancelled},
}

// validateStatusTransition checks if the transition from current to next is allowed.
func validateStatusTransition(current, next string) error {
	allowed, ok := allowedTransitions[current]
	if !ok {
		return fmt.Errorf("cannot transition from %s", current)
	}
	for _, s := range allowed {
		if s == next {
			return nil
		}
	}
	return fmt.Errorf("cannot transition from %s to %s", current, next)
}
