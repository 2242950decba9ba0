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
)

// BranchStore defines the database methods needed by branch handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type BranchStore interface {
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
	ListBranches(ctx context.Context) ([]database.Branch, error)
	CreateBranch(ctx context.Context, arg database.CreateBranchParams) (database.Branch, error)
}

// BranchHandler handles branch endpoints.
type BranchHandler struct {
	store BranchStore
}

// NewBranchHandler creates a new BranchHandler.
func NewBranchHandler(store BranchStore) *BranchHandler {
	return &BranchHandler{store: store}
}

// RegisterRoutes registers branch endpoints on the given Chi router.
func (h *BranchHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{bid}", h.Get)
}

// --- Request / Response types ---

type createBranchRequest struct {
	Name      string   `json:"name"`
	Address   string   `json:"address"`
	Phone     string   `json:"phone"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	MaxRadius *int32   `json:"max_radius"`
}

type branchResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address"`
	Phone     *string   `json:"phone"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
	MaxRadius *int32    `json:"max_radius"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// --- Handlers ---

// List handles GET /branches.
func (h *BranchHandler) List(w http.ResponseWriter, r *http.Request) {
	branches, err := h.store.ListBranches(r.Context())
	if err != nil {
		log.Printf("ERROR: list branches: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]branchResponse, len(branches))
	for i, b := range branches {
		resp[i] = dbBranchToResponse(b)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /branches. Router gates this behind OWNER.
func (h *BranchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	// A geofence needs both coordinates; having one is a client bug.
	if (req.Latitude == nil) != (req.Longitude == nil) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "latitude and longitude must be set together"})
		return
	}
	if req.Latitude != nil {
		if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "coordinates out of range"})
			return
		}
	}
	if req.MaxRadius != nil && *req.MaxRadius <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_radius must be > 0"})
		return
	}

	params := database.CreateBranchParams{Name: req.Name}
	if req.Address != "" {
		params.Address = pgtype.Text{String: req.Address, Valid: true}
	}
	if req.Phone != "" {
		params.Phone = pgtype.Text{String: req.Phone, Valid: true}
	}
	if req.Latitude != nil {
		params.Latitude = pgtype.Float8{Float64: *req.Latitude, Valid: true}
		params.Longitude = pgtype.Float8{Float64: *req.Longitude, Valid: true}
	}
	if req.MaxRadius != nil {
		params.MaxRadius = pgtype.Int4{Int32: *req.MaxRadius, Valid: true}
	}

	branch, err := h.store.CreateBranch(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: create branch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbBranchToResponse(branch))
}

// Get handles GET /branches/{bid}.
func (h *BranchHandler) Get(w http.ResponseWriter, r *http.Request) {
	branchID, err := uuid.Parse(chi.URLParam(r, "bid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch ID"})
		return
	}

	branch, err := h.store.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Printf("ERROR: get branch: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbBranchToResponse(branch))
}

// --- Helpers ---

func dbBranchToResponse(b database.Branch) branchResponse {
	resp := branchResponse{
		ID:        b.ID,
		Name:      b.Name,
		IsActive:  b.IsActive,
		CreatedAt: b.CreatedAt,
	}
	if b.Address.Valid {
		resp.Address = &b.Address.String
	}
	if b.Phone.Valid {
		resp.Phone = &b.Phone.String
	}
	if b.Latitude.Valid {
		lat := b.Latitude.Float64
		resp.Latitude = &lat
	}
	if b.Longitude.Valid {
		lon := b.Longitude.Float64
		resp.Longitude = &lon
	}
	if b.MaxRadius.Valid {
		radius := b.MaxRadius.Int32
		resp.MaxRadius = &radius
	}
	return resp
}
