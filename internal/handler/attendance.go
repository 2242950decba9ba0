package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/kopisegar/api/internal/attendance"
	"github.com/kopisegar/api/internal/database"
	"github.com/kopisegar/api/internal/enum"
	"github.com/kopisegar/api/internal/middleware"
)

// maxPhotoBytes caps clock photo uploads.
const maxPhotoBytes = 10 << 20

// AttendanceStore defines the database methods needed by attendance handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AttendanceStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
	GetBranch(ctx context.Context, id uuid.UUID) (database.Branch, error)
	BindUserDevice(ctx context.Context, arg database.BindUserDeviceParams) error
	CreateAttendanceRecord(ctx context.Context, arg database.CreateAttendanceRecordParams) (database.AttendanceRecord, error)
	GetLatestAttendanceInRange(ctx context.Context, arg database.GetLatestAttendanceInRangeParams) (database.AttendanceRecord, error)
	ListAttendanceByBranch(ctx context.Context, arg database.ListAttendanceByBranchParams) ([]database.AttendanceRecord, error)
}

// PhotoStore persists clock photo evidence and returns a serving URL.
// Satisfied by *storage.LocalStore.
type PhotoStore interface {
	SavePhoto(ctx context.Context, name string, r io.Reader) (string, error)
}

// AttendanceHandler handles attendance endpoints.
type AttendanceHandler struct {
	store  AttendanceStore
	photos PhotoStore
	now    func() time.Time
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(store AttendanceStore, photos PhotoStore) *AttendanceHandler {
	return &AttendanceHandler{store: store, photos: photos, now: time.Now}
}

// RegisterRoutes registers attendance endpoints on the given Chi router.
// Expected to be mounted inside a branch-scoped subrouter: /branches/{bid}/attendance
func (h *AttendanceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/clock", h.Clock)
	r.Get("/status", h.Status)
	r.Get("/", h.List)
}

// --- Response types ---

type clockResponse struct {
	Record  attendanceRecordResponse `json:"record"`
	Warning string                   `json:"warning,omitempty"`
}

type attendanceRecordResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	BranchID  uuid.UUID `json:"branch_id"`
	Type      string    `json:"type"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	PhotoURL  *string   `json:"photo_url"`
	DeviceID  *string   `json:"device_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type attendanceStatusResponse struct {
	Status      string     `json:"status"`
	LastClockIn *time.Time `json:"last_clock_in"`
}

// --- Handlers ---

// Clock handles POST /branches/{bid}/attendance/clock.
// Multipart form: type (CLOCK_IN|CLOCK_OUT), latitude, longitude,
// device_id, and a photo file as evidence.
func (h *AttendanceHandler) Clock(w http.ResponseWriter, r *http.Request) {
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

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}

	clockType := r.FormValue("type")
	if clockType != enum.AttendanceTypeClockIn && clockType != enum.AttendanceTypeClockOut {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "type must be CLOCK_IN or CLOCK_OUT"})
		return
	}

	lat, err := strconv.ParseFloat(r.FormValue("latitude"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid latitude"})
		return
	}
	lon, err := strconv.ParseFloat(r.FormValue("longitude"), 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid longitude"})
		return
	}

	deviceID := strings.TrimSpace(r.FormValue("device_id"))

	photo, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "photo is required"})
		return
	}
	defer photo.Close()

	user, err := h.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "user not found"})
			return
		}
		log.Printf("ERROR: get user for clock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	branch, err := h.store.GetBranch(r.Context(), branchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "branch not found"})
			return
		}
		log.Printf("ERROR: get branch for clock: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	decision := attendance.EvaluateClockAttempt(
		employeeFromUser(user),
		branchForGeofence(branch),
		attendance.Coordinates{Latitude: lat, Longitude: lon},
		deviceID,
	)
	if !decision.Accept {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": decision.Reason})
		return
	}

	if decision.BindDevice {
		if err := h.store.BindUserDevice(r.Context(), database.BindUserDeviceParams{
			ID:       user.ID,
			DeviceID: pgtype.Text{String: deviceID, Valid: true},
		}); err != nil {
			log.Printf("ERROR: bind device: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	photoName := fmt.Sprintf("%s-%d%s", user.ID, h.now().UnixNano(), photoExt(header.Filename))
	photoURL, err := h.photos.SavePhoto(r.Context(), photoName, photo)
	if err != nil {
		log.Printf("ERROR: save clock photo: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	var deviceText pgtype.Text
	if deviceID != "" {
		deviceText = pgtype.Text{String: deviceID, Valid: true}
	}

	record, err := h.store.CreateAttendanceRecord(r.Context(), database.CreateAttendanceRecordParams{
		UserID:    user.ID,
		BranchID:  branchID,
		Type:      clockType,
		Latitude:  lat,
		Longitude: lon,
		PhotoURL:  pgtype.Text{String: photoURL, Valid: true},
		DeviceID:  deviceText,
		Status:    enum.AttendanceStatusApproved,
	})
	if err != nil {
		log.Printf("ERROR: create attendance record: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, clockResponse{
		Record:  dbAttendanceToResponse(record),
		Warning: decision.Warning,
	})
}

// Status handles GET /branches/{bid}/attendance/status.
// Returns the caller's derived clock state for the current UTC day.
func (h *AttendanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	from, to := attendance.DayWindowUTC(h.now())

	var latest *attendance.Record
	rec, err := h.store.GetLatestAttendanceInRange(r.Context(), database.GetLatestAttendanceInRangeParams{
		UserID: claims.UserID,
		From:   from,
		To:     to,
	})
	if err == nil {
		latest = &attendance.Record{Type: rec.Type, Timestamp: rec.CreatedAt}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Printf("ERROR: get latest attendance: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	status := attendance.DeriveDailyStatus(latest)

	writeJSON(w, http.StatusOK, attendanceStatusResponse{
		Status:      status.Status,
		LastClockIn: status.LastClockIn,
	})
}

// List handles GET /branches/{bid}/attendance.
// Lists the branch's records for one UTC day (today by default).
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
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

	from, to := attendance.DayWindowUTC(h.now())
	if s := r.URL.Query().Get("date"); s != "" {
		day, err := time.Parse("2006-01-02", s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
			return
		}
		from, to = attendance.DayWindowUTC(day)
	}

	records, err := h.store.ListAttendanceByBranch(r.Context(), database.ListAttendanceByBranchParams{
		BranchID: branchID,
		From:     from,
		To:       to,
	})
	if err != nil {
		log.Printf("ERROR: list attendance: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]attendanceRecordResponse, len(records))
	for i, rec := range records {
		resp[i] = dbAttendanceToResponse(rec)
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func employeeFromUser(u database.User) *attendance.Employee {
	emp := &attendance.Employee{
		ID:       u.ID,
		BranchID: u.BranchID,
		IsActive: u.IsActive,
	}
	if u.DeviceID.Valid {
		emp.DeviceID = u.DeviceID.String
	}
	return emp
}

func branchForGeofence(b database.Branch) *attendance.Branch {
	gb := &attendance.Branch{Name: b.Name}
	if b.Latitude.Valid {
		lat := b.Latitude.Float64
		gb.Latitude = &lat
	}
	if b.Longitude.Valid {
		lon := b.Longitude.Float64
		gb.Longitude = &lon
	}
	if b.MaxRadius.Valid {
		gb.MaxRadius = float64(b.MaxRadius.Int32)
	}
	return gb
}

// photoExt keeps the uploaded extension, defaulting to .jpg.
func photoExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
		return ext
	}
	return ".jpg"
}

func dbAttendanceToResponse(rec database.AttendanceRecord) attendanceRecordResponse {
	resp := attendanceRecordResponse{
		ID:        rec.ID,
		UserID:    rec.UserID,
		BranchID:  rec.BranchID,
		Type:      rec.Type,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
	}
	if rec.PhotoURL.Valid {
		resp.PhotoURL = &rec.PhotoURL.String
	}
	if rec.DeviceID.Valid {
		resp.DeviceID = &rec.DeviceID.String
	}
	return resp
}
