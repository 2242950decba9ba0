package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopisegar/api/internal/auth"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/handler"
	"github.com/kopisegar/api/internal/middleware"
)

// Kopi Segar Menteng coordinates; tests clock in from the counter or
// from a point a few kilometres away.
const (
	branchLat = -6.195278
	branchLon = 106.837222
)

// mockAttendanceStore is a map-backed in-memory AttendanceStore.
type mockAttendanceStore struct {
	users    map[uuid.UUID]database.User
	branches map[uuid.UUID]database.Branch
	records  []database.AttendanceRecord
}

func newMockAttendanceStore() *mockAttendanceStore {
	return &mockAttendanceStore{
		users:    make(map[uuid.UUID]database.User),
		branches: make(map[uuid.UUID]database.Branch),
	}
}

func (m *mockAttendanceStore) GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockAttendanceStore) GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error) {
	b, ok := m.branches[id]
	if !ok {
		return database.Branch{}, pgx.ErrNoRows
	}
	return b, nil
}

func (m *mockAttendanceStore) BindUserDevice(ctx context.Context, arg database.BindUserDeviceParams) error {
	u, ok := m.users[arg.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	u.DeviceID = arg.DeviceID
	m.users[arg.ID] = u
	return nil
}

func (m *mockAttendanceStore) CreateAttendanceRecord(ctx context.Context, arg database.CreateAttendanceRecordParams) (database.AttendanceRecord, error) {
	rec := database.AttendanceRecord{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		BranchID:  arg.BranchID,
		Type:      arg.Type,
		Latitude:  arg.Latitude,
		Longitude: arg.Longitude,
		PhotoURL:  arg.PhotoURL,
		DeviceID:  arg.DeviceID,
		Status:    arg.Status,
		CreatedAt: time.Now(),
	}
	m.records = append(m.records, rec)
	return rec, nil
}

func (m *mockAttendanceStore) GetLatestAttendanceInRange(ctx context.Context, arg database.GetLatestAttendanceInRangeParams) (database.AttendanceRecord, error) {
	var latest *database.AttendanceRecord
	for i := range m.records {
		rec := m.records[i]
		if rec.UserID != arg.UserID || rec.CreatedAt.Before(arg.From) || !rec.CreatedAt.Before(arg.To) {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
			latest = &rec
		}
	}
	if latest == nil {
		return database.AttendanceRecord{}, pgx.ErrNoRows
	}
	return *latest, nil
}

func (m *mockAttendanceStore) ListAttendanceByBranch(ctx context.Context, arg database.ListAttendanceByBranchParams) ([]database.AttendanceRecord, error) {
	out := []database.AttendanceRecord{}
	for _, rec := range m.records {
		if rec.BranchID == arg.BranchID && !rec.CreatedAt.Before(arg.From) && rec.CreatedAt.Before(arg.To) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// mockPhotoStore records saved photo names without touching disk.
type mockPhotoStore struct {
	saved []string
	err   error
}

func (m *mockPhotoStore) SavePhoto(ctx context.Context, name string, r io.Reader) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	m.saved = append(m.saved, name)
	return "/uploads/" + name, nil
}

// --- Helpers ---

func setupAttendanceRouter(store *mockAttendanceStore, photos *mockPhotoStore) *chi.Mux {
	h := handler.NewAttendanceHandler(store, photos)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/branches/{bid}/attendance", h.RegisterRoutes)
	return r
}

func seedEmployee(store *mockAttendanceStore, branchID uuid.UUID, deviceID string) database.User {
	u := database.User{
		ID:       uuid.New(),
		BranchID: branchID,
		Email:    "barista@kopisegar.id",
		FullName: "Budi Barista",
		Role:     "CASHIER",
		IsActive: true,
	}
	if deviceID != "" {
		u.DeviceID = pgtype.Text{String: deviceID, Valid: true}
	}
	store.users[u.ID] = u
	return u
}

func seedGeofencedBranch(store *mockAttendanceStore, branchID uuid.UUID) {
	store.branches[branchID] = database.Branch{
		ID:        branchID,
		Name:      "Kopi Segar Menteng",
		Latitude:  pgtype.Float8{Float64: branchLat, Valid: true},
		Longitude: pgtype.Float8{Float64: branchLon, Valid: true},
		MaxRadius: pgtype.Int4{Int32: 100, Valid: true},
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

// doClockRequest posts a multipart clock form with a small fake photo.
func doClockRequest(t *testing.T, router http.Handler, branchID uuid.UUID, claims *auth.Claims, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	part, err := mw.CreateFormFile("photo", "selfie.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake-jpeg-bytes")); err != nil {
		t.Fatalf("write photo: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	token, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.BranchID, claims.Role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest("POST", "/branches/"+branchID.String()+"/attendance/clock", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// --- Clock tests ---

func TestClock_InsideGeofence(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	seedGeofencedBranch(store, branchID)
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	photos := &mockPhotoStore{}
	router := setupAttendanceRouter(store, photos)
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "CLOCK_IN",
		"latitude":  "-6.195280",
		"longitude": "106.837220",
		"device_id": "device-abc",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	rec := resp["record"].(map[string]interface{})
	if rec["type"] != "CLOCK_IN" {
		t.Errorf("type: got %v, want CLOCK_IN", rec["type"])
	}
	if rec["status"] != "APPROVED" {
		t.Errorf("status: got %v, want APPROVED", rec["status"])
	}
	if !strings.HasPrefix(rec["photo_url"].(string), "/uploads/") {
		t.Errorf("photo_url: got %v, want /uploads/ prefix", rec["photo_url"])
	}
	if _, hasWarning := resp["warning"]; hasWarning {
		t.Errorf("expected no warning for recognized device, got %v", resp["warning"])
	}
	if len(photos.saved) != 1 {
		t.Errorf("photos saved: got %d, want 1", len(photos.saved))
	}
}

func TestClock_OutsideGeofence(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	seedGeofencedBranch(store, branchID)
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "CLOCK_IN",
		"latitude":  "-6.230000",
		"longitude": "106.820000",
		"device_id": "device-abc",
	})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if msg := resp["error"].(string); !strings.Contains(msg, "away from") {
		t.Errorf("error: got %q, want a distance message", msg)
	}
	if len(store.records) != 0 {
		t.Errorf("no record should be created on geofence rejection")
	}
}

func TestClock_BindsFirstDevice(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	seedGeofencedBranch(store, branchID)
	user := seedEmployee(store, branchID, "")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "CLOCK_IN",
		"latitude":  "-6.195278",
		"longitude": "106.837222",
		"device_id": "device-new",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	bound := store.users[user.ID]
	if !bound.DeviceID.Valid || bound.DeviceID.String != "device-new" {
		t.Errorf("device binding: got %+v, want device-new", bound.DeviceID)
	}
}

func TestClock_UnrecognizedDeviceWarns(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	seedGeofencedBranch(store, branchID)
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "CLOCK_OUT",
		"latitude":  "-6.195278",
		"longitude": "106.837222",
		"device_id": "device-other",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["warning"] != "Attendance recorded from an unrecognized device" {
		t.Errorf("warning: got %v, want unrecognized device warning", resp["warning"])
	}

	// The original device stays bound
	if store.users[user.ID].DeviceID.String != "device-abc" {
		t.Errorf("device_id: got %v, want device-abc", store.users[user.ID].DeviceID.String)
	}
}

func TestClock_BranchWithoutGeofence(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	store.branches[branchID] = database.Branch{
		ID:        branchID,
		Name:      "Kopi Segar Pop-up",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "CLOCK_IN",
		"latitude":  "-6.999999",
		"longitude": "107.999999",
		"device_id": "device-abc",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
}

func TestClock_InactiveEmployee(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	seedGeofencedBranch(store, branchID)
	user := seedEmployee(store, branchID, "device-abc")
	user.IsActive = false
	store.users[user.ID] = user
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "CLOCK_IN",
		"latitude":  "-6.195278",
		"longitude": "106.837222",
		"device_id": "device-abc",
	})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}

func TestClock_InvalidType(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	seedGeofencedBranch(store, branchID)
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "LUNCH_BREAK",
		"latitude":  "-6.195278",
		"longitude": "106.837222",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestClock_MissingCoordinates(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	seedGeofencedBranch(store, branchID)
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type": "CLOCK_IN",
	})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestClock_BranchNotFound(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doClockRequest(t, router, branchID, claims, map[string]string{
		"type":      "CLOCK_IN",
		"latitude":  "-6.195278",
		"longitude": "106.837222",
	})

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNotFound, rr.Body.String())
	}
}

// --- Status tests ---

func TestAttendanceStatus_NotClockedIn(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doAuthRequest(t, router, "GET",
		"/branches/"+branchID.String()+"/attendance/status", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["status"] != "NOT_CLOCKED_IN" {
		t.Errorf("status: got %v, want NOT_CLOCKED_IN", resp["status"])
	}
	if resp["last_clock_in"] != nil {
		t.Errorf("last_clock_in: got %v, want null", resp["last_clock_in"])
	}
}

func TestAttendanceStatus_ClockedIn(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	store.records = append(store.records, database.AttendanceRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		BranchID:  branchID,
		Type:      "CLOCK_IN",
		Status:    "APPROVED",
		CreatedAt: time.Now().UTC(),
	})

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doAuthRequest(t, router, "GET",
		"/branches/"+branchID.String()+"/attendance/status", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["status"] != "CLOCKED_IN" {
		t.Errorf("status: got %v, want CLOCKED_IN", resp["status"])
	}
	if resp["last_clock_in"] == nil {
		t.Errorf("last_clock_in should be set")
	}
}

func TestAttendanceStatus_ClockedOut(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "CASHIER"}

	now := time.Now().UTC()
	store.records = append(store.records,
		database.AttendanceRecord{
			ID: uuid.New(), UserID: user.ID, BranchID: branchID,
			Type: "CLOCK_IN", Status: "APPROVED", CreatedAt: now.Add(-8 * time.Minute),
		},
		database.AttendanceRecord{
			ID: uuid.New(), UserID: user.ID, BranchID: branchID,
			Type: "CLOCK_OUT", Status: "APPROVED", CreatedAt: now,
		},
	)

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doAuthRequest(t, router, "GET",
		"/branches/"+branchID.String()+"/attendance/status", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeJSONMap(t, rr)
	if resp["status"] != "CLOCKED_OUT" {
		t.Errorf("status: got %v, want CLOCKED_OUT", resp["status"])
	}
}

// --- List tests ---

func TestAttendanceList_Today(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "MANAGER"}

	store.records = append(store.records, database.AttendanceRecord{
		ID:        uuid.New(),
		UserID:    user.ID,
		BranchID:  branchID,
		Type:      "CLOCK_IN",
		Status:    "APPROVED",
		CreatedAt: time.Now().UTC(),
	})

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doAuthRequest(t, router, "GET",
		"/branches/"+branchID.String()+"/attendance", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	var resp []map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("records count: got %d, want 1", len(resp))
	}
}

func TestAttendanceList_InvalidDate(t *testing.T) {
	store := newMockAttendanceStore()
	branchID := uuid.New()
	user := seedEmployee(store, branchID, "device-abc")
	claims := &auth.Claims{UserID: user.ID, BranchID: branchID, Role: "MANAGER"}

	router := setupAttendanceRouter(store, &mockPhotoStore{})
	rr := doAuthRequest(t, router, "GET",
		"/branches/"+branchID.String()+"/attendance?date=31-08-2026", nil, claims)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}
