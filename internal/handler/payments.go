package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/enum"
	"github.com/kopisegar/api/internal/middleware"
	"github.com/kopisegar/api/internal/payment"
	"github.com/kopisegar/api/internal/service"
	"github.com/kopisegar/api/internal/ws"
	"github.com/shopspring/decimal"
)

// PaymentStore defines the database methods needed by payment handlers.
type PaymentStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderForUpdateParams) (database.Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (database.Order, error)
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Payment, error)
	CreatePayment(ctx context.Context, arg database.CreatePaymentParams) (database.Payment, error)
	SumPaymentsByOrder(ctx context.Context, orderID uuid.UUID) (pgtype.Numeric, error)
	GetPendingGatewayPayment(ctx context.Context, orderID uuid.UUID) (database.Payment, error)
	UpdatePaymentStatus(ctx context.Context, arg database.UpdatePaymentStatusParams) (database.Payment, error)
	CompleteOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
}

// NewPaymentStore creates a PaymentStore from a DBTX (pool or tx).
type NewPaymentStore func(db database.DBTX) PaymentStore

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	store     PaymentStore
	pool      service.TxBeginner
	newStore  NewPaymentStore
	hub       Broadcaster
	serverKey string
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(store PaymentStore, pool service.TxBeginner, newStore NewPaymentStore, hub Broadcaster, serverKey string) *PaymentHandler {
	return &PaymentHandler{store: store, pool: pool, newStore: newStore, hub: hub, serverKey: serverKey}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted at /branches/{bid}/orders/{id}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Add)
	r.Get("/", h.List)
}

// --- Request / Response types ---

type addPaymentRequest struct {
	PaymentMethod   string `json:"payment_method"`
	Amount          string `json:"amount"`
	AmountReceived  string `json:"amount_received"`
	ReferenceNumber string `json:"reference_number"`
}

// notificationRequest is the gateway's payment notification payload.
type notificationRequest struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
	TransactionStatus string `json:"transaction_status"`
}

// --- Handlers ---

// Add handles POST /branches/{bid}/orders/{id}/payments.
func (h *PaymentHandler) Add(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req addPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	// Validate payment method
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "payment_method is required"})
		return
	}
	if !isValidPaymentMethod(req.PaymentMethod) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payment_method"})
		return
	}

	// Validate and parse amount
	if req.Amount == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount is required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.LessThanOrEqual(decimal.Zero) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount must be positive"})
		return
	}

	// For CASH payments, validate amount_received
	var amountReceived pgtype.Numeric
	var changeAmount pgtype.Numeric
	if req.PaymentMethod == enum.PaymentMethodCash {
		if req.AmountReceived == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount_received is required for CASH payments"})
			return
		}
		received, err := decimal.NewFromString(req.AmountReceived)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid amount_received"})
			return
		}
		if received.LessThan(amount) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "amount_received must be >= amount"})
			return
		}
		amountReceived = decimalToNumeric(received)
		changeAmount = decimalToNumeric(received.Sub(amount))
	}

	// Optional reference number for QRIS/TRANSFER
	var referenceNumber pgtype.Text
	if req.ReferenceNumber != "" {
		referenceNumber = pgtype.Text{String: req.ReferenceNumber, Valid: true}
	}

	// GATEWAY payments start PENDING and are settled by the webhook;
	// everything paid at the counter completes immediately.
	status := enum.PaymentStatusCompleted
	if req.PaymentMethod == enum.PaymentMethodGateway {
		status = enum.PaymentStatusPending
	}

	// Begin transaction BEFORE reading order state to prevent TOCTOU races.
	// Two concurrent payments could both pass validation outside a tx, causing overpayment.
	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	// Lock the order row (FOR NO KEY UPDATE) to serialize concurrent payment inserts
	order, err := txStore.GetOrderForUpdate(r.Context(), database.GetOrderForUpdateParams{
		ID:       orderID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if order.Status == enum.OrderStatusCancelled {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot add payment to cancelled order"})
		return
	}

	// Check if order is already fully paid
	totalPaid, err := txStore.SumPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: sum payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	totalPaidDecimal := numericToDecimal(totalPaid)
	orderTotal := numericToDecimal(order.TotalAmount)

	if totalPaidDecimal.GreaterThanOrEqual(orderTotal) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "order is already fully paid"})
		return
	}

	newTotalPaid := totalPaidDecimal.Add(amount)
	if newTotalPaid.GreaterThan(orderTotal) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment exceeds remaining balance"})
		return
	}

	pay, err := txStore.CreatePayment(r.Context(), database.CreatePaymentParams{
		OrderID:         orderID,
		PaymentMethod:   req.PaymentMethod,
		Amount:          decimalToNumeric(amount),
		Status:          status,
		ReferenceNumber: referenceNumber,
		AmountReceived:  amountReceived,
		ChangeAmount:    changeAmount,
		ProcessedBy:     pgtype.UUID{Bytes: claims.UserID, Valid: true},
	})
	if err != nil {
		log.Printf("ERROR: create payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// Auto-complete order if fully paid with completed payments (pending
	// gateway money doesn't count until the webhook confirms it).
	updatedOrder := order
	paid := false
	if status == enum.PaymentStatusCompleted && newTotalPaid.GreaterThanOrEqual(orderTotal) {
		updatedOrder, err = txStore.CompleteOrder(r.Context(), orderID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				log.Printf("ERROR: complete order: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		} else {
			paid = true
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for add payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if paid {
		h.broadcastPaid(updatedOrder)
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payment": dbPaymentToResponse(pay),
		"order":   dbOrderToResponse(updatedOrder),
	})
}

// List handles GET /branches/{bid}/orders/{id}/payments.
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	// Verify order exists and belongs to branch
	_, err = h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:       orderID,
		BranchID: branchID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	payments, err := h.store.ListPaymentsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list payments: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]paymentResponse, len(payments))
	for i, p := range payments {
		resp[i] = dbPaymentToResponse(p)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Notification handles POST /payments/notification, the public webhook
// the payment gateway calls after processing a GATEWAY payment. The
// order_id field carries our order number. The signature gates the
// request; a bad signature is rejected before any state is touched.
func (h *PaymentHandler) Notification(w http.ResponseWriter, r *http.Request) {
	var req notificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.OrderID == "" || req.StatusCode == "" || req.GrossAmount == "" || req.SignatureKey == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing notification fields"})
		return
	}

	if !payment.VerifySignature(req.OrderID, req.StatusCode, req.GrossAmount, h.serverKey, req.SignatureKey) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin tx for notification: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	txStore := h.newStore(tx)

	order, err := txStore.GetOrderByNumber(r.Context(), req.OrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order for notification: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	pending, err := txStore.GetPendingGatewayPayment(r.Context(), order.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Duplicate or late notification; nothing pending to settle.
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		log.Printf("ERROR: get pending gateway payment: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var newStatus string
	switch req.TransactionStatus {
	case "settlement", "capture":
		newStatus = enum.PaymentStatusCompleted
	case "deny", "cancel", "expire", "failure":
		newStatus = enum.PaymentStatusFailed
	default:
		// e.g. "pending"; acknowledge without changing anything.
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if _, err := txStore.UpdatePaymentStatus(r.Context(), database.UpdatePaymentStatusParams{
		ID:     pending.ID,
		Status: newStatus,
	}); err != nil {
		log.Printf("ERROR: update payment status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	updatedOrder := order
	paid := false
	if newStatus == enum.PaymentStatusCompleted {
		updatedOrder, err = txStore.CompleteOrder(r.Context(), order.ID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				log.Printf("ERROR: complete order from notification: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		} else {
			paid = true
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit tx for notification: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if paid {
		h.broadcastPaid(updatedOrder)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Helpers ---

func (h *PaymentHandler) broadcastPaid(order database.Order) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(dbOrderToResponse(order))
	if err != nil {
		log.Printf("ERROR: marshal order.paid event: %v", err)
		return
	}
	h.hub.BroadcastToBranch(order.BranchID, ws.Event{Type: "order.paid", Payload: payload})
}

// isValidPaymentMethod checks if the given payment method is valid.
func isValidPaymentMethod(pm string) bool {
	switch pm {
	case enum.PaymentMethodCash,
		enum.PaymentMethodQRIS,
		enum.PaymentMethodTransfer,
		enum.PaymentMethodGateway:
		return true
	}
	return false
}
