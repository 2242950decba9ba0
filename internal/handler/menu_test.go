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
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/handler"
	"github.com/kopisegar/api/internal/middleware"
)

// mockMenuStore is a map-backed in-memory MenuStore.
type mockMenuStore struct {
	items map[uuid.UUID]database.MenuItem
}

func newMockMenuStore() *mockMenuStore {
	return &mockMenuStore{items: make(map[uuid.UUID]database.MenuItem)}
}

func (m *mockMenuStore) ListMenuItems(ctx context.Context, branchID uuid.UUID) ([]database.MenuItem, error) {
	out := []database.MenuItem{}
	for _, item := range m.items {
		if item.BranchID == branchID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *mockMenuStore) CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error) {
	item := database.MenuItem{
		ID:          uuid.New(),
		BranchID:    arg.BranchID,
		Name:        arg.Name,
		Category:    arg.Category,
		Price:       arg.Price,
		IsAvailable: true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.items[item.ID] = item
	return item, nil
}

func (m *mockMenuStore) SetMenuItemAvailability(ctx context.Context, arg database.SetMenuItemAvailabilityParams) (database.MenuItem, error) {
	item, ok := m.items[arg.ID]
	if !ok || item.BranchID != arg.BranchID {
		return database.MenuItem{}, pgx.ErrNoRows
	}
	item.IsAvailable = arg.IsAvailable
	m.items[arg.ID] = item
	return item, nil
}

// --- Helpers ---

func setupMenuRouter(store *mockMenuStore) *chi.Mux {
	h := handler.NewMenuHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/branches/{bid}/menu", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestMenuCreate_HappyPath(t *testing.T) {
	store := newMockMenuStore()
	branchID := uuid.New()
	claims := cashierClaims(branchID)

	router := setupMenuRouter(store)
	rr := doAuthRequest(t, router, "POST", "/branches/"+branchID.String()+"/menu", map[string]string{
		"name":     "Es Kopi Susu",
		"category": "coffee",
		"price":    "25000",
	}, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["name"] != "Es Kopi Susu" {
		t.Errorf("name: got %v, want Es Kopi Susu", resp["name"])
	}
	if resp["price"] != "25000.00" {
		t.Errorf("price: got %v, want 25000.00", resp["price"])
	}
	if resp["is_available"] != true {
		t.Errorf("is_available: got %v, want true", resp["is_available"])
	}
}

func TestMenuCreate_NonPositivePrice(t *testing.T) {
	branchID := uuid.New()
	claims := cashierClaims(branchID)

	router := setupMenuRouter(newMockMenuStore())
	rr := doAuthRequest(t, router, "POST", "/branches/"+branchID.String()+"/menu", map[string]string{
		"name":     "Es Kopi Susu",
		"category": "coffee",
		"price":    "0",
	}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestMenuList_ScopedToBranch(t *testing.T) {
	store := newMockMenuStore()
	branchID := uuid.New()
	otherBranch := uuid.New()
	claims := cashierClaims(branchID)

	for _, b := range []uuid.UUID{branchID, otherBranch} {
		item := database.MenuItem{
			ID:          uuid.New(),
			BranchID:    b,
			Name:        "Kopi Tubruk",
			Category:    "coffee",
			IsAvailable: true,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		store.items[item.ID] = item
	}

	router := setupMenuRouter(store)
	rr := doAuthRequest(t, router, "GET", "/branches/"+branchID.String()+"/menu", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("items count: got %d, want 1", len(resp))
	}
	if resp[0]["branch_id"] != branchID.String() {
		t.Errorf("branch_id: got %v, want %v", resp[0]["branch_id"], branchID)
	}
}

func TestMenuSetAvailability(t *testing.T) {
	store := newMockMenuStore()
	branchID := uuid.New()
	claims := cashierClaims(branchID)

	item := database.MenuItem{
		ID:          uuid.New(),
		BranchID:    branchID,
		Name:        "Croissant",
		Category:    "pastry",
		IsAvailable: true,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	store.items[item.ID] = item

	router := setupMenuRouter(store)
	rr := doAuthRequest(t, router, "PATCH",
		"/branches/"+branchID.String()+"/menu/"+item.ID.String()+"/availability",
		map[string]interface{}{"is_available": false}, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["is_available"] != false {
		t.Errorf("is_available: got %v, want false", resp["is_available"])
	}
}

func TestMenuSetAvailability_MissingField(t *testing.T) {
	branchID := uuid.New()
	claims := cashierClaims(branchID)

	router := setupMenuRouter(newMockMenuStore())
	rr := doAuthRequest(t, router, "PATCH",
		"/branches/"+branchID.String()+"/menu/"+uuid.New().String()+"/availability",
		map[string]interface{}{}, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestMenuSetAvailability_NotFound(t *testing.T) {
	branchID := uuid.New()
	claims := cashierClaims(branchID)

	router := setupMenuRouter(newMockMenuStore())
	rr := doAuthRequest(t, router, "PATCH",
		"/branches/"+branchID.String()+"/menu/"+uuid.New().String()+"/availability",
		map[string]interface{}{"is_available": true}, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}
