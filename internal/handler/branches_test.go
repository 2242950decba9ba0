package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/handler"
	"github.com/kopisegar/api/internal/middleware"
)

// mockBranchStore is a map-backed in-memory BranchStore.
type mockBranchStore struct {
	branches map[uuid.UUID]database.Branch
}

func newMockBranchStore() *mockBranchStore {
	return &mockBranchStore{branches: make(map[uuid.UUID]database.Branch)}
}

func (m *mockBranchStore) GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error) {
	b, ok := m.branches[id]
	if !ok {
		return database.Branch{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *mockBranchStore) ListBranches(ctx context.Context) ([]database.Branch, error) {
	out := make([]database.Branch, 0, len(m.branches))
	for _, b := range m.branches {
		out = append(out, b)
	}
	return out, nil
}

func (m *mockBranchStore) CreateBranch(ctx context.Context, arg database.CreateBranchParams) (database.Branch, error) {
	b := database.Branch{
		ID:        uuid.New(),
		Name:      arg.Name,
		Address:   arg.Address,
		Phone:     arg.Phone,
		Latitude:  arg.Latitude,
		Longitude: arg.Longitude,
		MaxRadius: arg.MaxRadius,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.branches[b.ID] = b
	return b, nil
}

// --- Helpers ---

func setupBranchRouter(store *mockBranchStore) *chi.Mux {
	h := handler.NewBranchHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/branches", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestBranchCreate_WithGeofence(t *testing.T) {
	store := newMockBranchStore()
	claims := cashierClaims(uuid.New())
	claims.Role = "OWNER"

	router := setupBranchRouter(store)
	rr := doAuthRequest(t, router, "POST", "/branches", map[string]interface{}{
		"name":       "Kopi Segar Menteng",
		"address":    "Jl. Cikini Raya No. 45, Jakarta Pusat",
		"latitude":   -6.195278,
		"longitude":  106.837222,
		"max_radius": 100,
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["name"] != "Kopi Segar Menteng" {
		t.Errorf("name: got %v, want Kopi Segar Menteng", resp["name"])
	}
	if resp["latitude"].(float64) != -6.195278 {
		t.Errorf("latitude: got %v, want -6.195278", resp["latitude"])
	}
	if resp["max_radius"].(float64) != 100 {
		t.Errorf("max_radius: got %v, want 100", resp["max_radius"])
	}
	if resp["is_active"] != true {
		t.Errorf("is_active: got %v, want true", resp["is_active"])
	}
}

func TestBranchCreate_LoneCoordinate(t *testing.T) {
	claims := cashierClaims(uuid.New())
	claims.Role = "OWNER"

	router := setupBranchRouter(newMockBranchStore())
	rr := doAuthRequest(t, router, "POST", "/branches", map[string]interface{}{
		"name":     "Kopi Segar Kemang",
		"latitude": -6.26,
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestBranchCreate_CoordinatesOutOfRange(t *testing.T) {
	claims := cashierClaims(uuid.New())
	claims.Role = "OWNER"

	router := setupBranchRouter(newMockBranchStore())
	rr := doAuthRequest(t, router, "POST", "/branches", map[string]interface{}{
		"name":      "Kopi Segar Antartika",
		"latitude":  -95.0,
		"longitude": 200.0,
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestBranchCreate_MissingName(t *testing.T) {
	claims := cashierClaims(uuid.New())
	claims.Role = "OWNER"

	router := setupBranchRouter(newMockBranchStore())
	rr := doAuthRequest(t, router, "POST", "/branches", map[string]interface{}{
		"address": "Jl. Tanpa Nama",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestBranchList(t *testing.T) {
	store := newMockBranchStore()
	claims := cashierClaims(uuid.New())

	_, err := store.CreateBranch(context.Background(), database.CreateBranchParams{Name: "Kopi Segar Menteng"})
	if err != nil {
		t.Fatalf("seed branch: %v", err)
	}
	_, err = store.CreateBranch(context.Background(), database.CreateBranchParams{Name: "Kopi Segar Kemang"})
	if err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	router := setupBranchRouter(store)
	rr := doAuthRequest(t, router, "GET", "/branches", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("branches count: got %d, want 2", len(resp))
	}
}

func TestBranchGet(t *testing.T) {
	store := newMockBranchStore()
	claims := cashierClaims(uuid.New())

	b := database.Branch{
		ID:        uuid.New(),
		Name:      "Kopi Segar Menteng",
		Address:   pgtype.Text{String: "Jl. Cikini Raya No. 45", Valid: true},
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	store.branches[b.ID] = b

	router := setupBranchRouter(store)
	rr := doAuthRequest(t, router, "GET", "/branches/"+b.ID.String(), nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["name"] != "Kopi Segar Menteng" {
		t.Errorf("name: got %v, want Kopi Segar Menteng", resp["name"])
	}
	if resp["address"] != "Jl. Cikini Raya No. 45" {
		t.Errorf("address: got %v, want Jl. Cikini Raya No. 45", resp["address"])
	}
}

func TestBranchGet_NotFound(t *testing.T) {
	claims := cashierClaims(uuid.New())

	router := setupBranchRouter(newMockBranchStore())
	rr := doAuthRequest(t, router, "GET", "/branches/"+uuid.New().String(), nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}
