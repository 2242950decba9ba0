package attendance

import (
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func f64ptr(v float64) *float64 { return &v }

// Monas, Jakarta.
const (
	branchLat = -6.175392
	branchLon = 106.827153
)

// =====================
// Haversine distance
// =====================

func TestDistanceMeters_IdenticalPointsAreZero(t *testing.T) {
	coords := [][2]float64{
		{0, 0},
		{branchLat, branchLon},
		{89.9, 179.9},
		{-45.0, -170.0},
	}
	for _, c := range coords {
		if d := DistanceMeters(c[0], c[1], c[0], c[1]); d != 0 {
			t.Errorf("distance(%v, %v) to itself: got %v, want 0", c[0], c[1], d)
		}
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	d1 := DistanceMeters(branchLat, branchLon, -6.2, 106.8)
	d2 := DistanceMeters(-6.2, 106.8, branchLat, branchLon)
	if math.Abs(d1-d2) > 1e-9 {
		t.Errorf("distance is not symmetric: %v vs %v", d1, d2)
	}
}

func TestDistanceMeters_OneDegreeLatitude(t *testing.T) {
	// 1 degree of latitude is ~111 km at any longitude.
	for _, lon := range []float64{0, 106.8, -73.9} {
		d := DistanceMeters(0, lon, 1, lon)
		if d <= 110000 || d >= 112000 {
			t.Errorf("1 degree latitude at lon %v: got %v m, want ~111000", lon, d)
		}
	}
}

func TestDistanceMeters_SouthernHemisphere(t *testing.T) {
	d := DistanceMeters(-6, 106, -7, 106)
	if d <= 110000 || d >= 112000 {
		t.Errorf("1 degree latitude south: got %v m, want ~111000", d)
	}
}

// =====================
// Radius check
// =====================

func TestIsWithinRadius_Boundary(t *testing.T) {
	// A point ~100 m north of the branch: 100 / 111320 degrees latitude.
	nearLat := branchLat + 100.0/111320.0
	dist := DistanceMeters(branchLat, branchLon, nearLat, branchLon)

	// At exactly the measured distance the point is inside.
	if !IsWithinRadius(branchLat, branchLon, nearLat, branchLon, dist) {
		t.Error("point at exactly maxRadius should be within")
	}
	// Strictly beyond is outside.
	if IsWithinRadius(branchLat, branchLon, nearLat, branchLon, dist-1) {
		t.Error("point beyond maxRadius should not be within")
	}
}

func TestIsWithinRadius_DefaultRadius(t *testing.T) {
	// ~50 m away: inside the 100 m default.
	nearLat := branchLat + 50.0/111320.0
	if !IsWithinRadius(branchLat, branchLon, nearLat, branchLon, 0) {
		t.Error("50 m away should be inside the default 100 m radius")
	}

	// ~150 m away: outside the default.
	farLat := branchLat + 150.0/111320.0
	if IsWithinRadius(branchLat, branchLon, farLat, branchLon, 0) {
		t.Error("150 m away should be outside the default 100 m radius")
	}
}

// =====================
// Clock attempt evaluation
// =====================

func activeEmployee() *Employee {
	return &Employee{
		ID:       uuid.New(),
		BranchID: uuid.New(),
		DeviceID: "device-a",
		IsActive: true,
	}
}

func locatedBranch() *Branch {
	return &Branch{
		Name:      "Kopi Segar Pusat",
		Latitude:  f64ptr(branchLat),
		Longitude: f64ptr(branchLon),
		MaxRadius: 100,
	}
}

func atBranch() Coordinates {
	return Coordinates{Latitude: branchLat, Longitude: branchLon}
}

func TestEvaluateClockAttempt_MissingEmployee(t *testing.T) {
	dec := EvaluateClockAttempt(nil, locatedBranch(), atBranch(), "device-a")
	if dec.Accept {
		t.Fatal("expected rejection for missing employee")
	}
	if !strings.Contains(dec.Reason, "not found") {
		t.Errorf("reason: got %q", dec.Reason)
	}
}

func TestEvaluateClockAttempt_InactiveEmployee(t *testing.T) {
	emp := activeEmployee()
	emp.IsActive = false

	dec := EvaluateClockAttempt(emp, locatedBranch(), atBranch(), "device-a")
	if dec.Accept {
		t.Fatal("expected rejection for inactive employee")
	}
	if !strings.Contains(dec.Reason, "inactive") {
		t.Errorf("reason: got %q", dec.Reason)
	}
}

func TestEvaluateClockAttempt_WithinRadius(t *testing.T) {
	dec := EvaluateClockAttempt(activeEmployee(), locatedBranch(), atBranch(), "device-a")
	if !dec.Accept {
		t.Fatalf("expected accept at the branch, got: %s", dec.Reason)
	}
	if dec.Warning != "" {
		t.Errorf("unexpected warning: %q", dec.Warning)
	}
}

func TestEvaluateClockAttempt_OutsideRadius(t *testing.T) {
	far := Coordinates{Latitude: branchLat + 0.05, Longitude: branchLon} // ~5.5 km
	dec := EvaluateClockAttempt(activeEmployee(), locatedBranch(), far, "device-a")
	if dec.Accept {
		t.Fatal("expected rejection outside the geofence")
	}
	if !strings.Contains(dec.Reason, "Kopi Segar Pusat") {
		t.Errorf("reason should include the branch name, got %q", dec.Reason)
	}
	if !strings.Contains(dec.Reason, "100 m") {
		t.Errorf("reason should include the allowed radius, got %q", dec.Reason)
	}
}

func TestEvaluateClockAttempt_DeviceMismatchWarnsButAccepts(t *testing.T) {
	dec := EvaluateClockAttempt(activeEmployee(), locatedBranch(), atBranch(), "device-b")
	if !dec.Accept {
		t.Fatalf("device mismatch must not block, got rejection: %s", dec.Reason)
	}
	if dec.Warning == "" {
		t.Error("expected a non-empty warning for device mismatch")
	}
}

func TestEvaluateClockAttempt_FirstDeviceBinds(t *testing.T) {
	emp := activeEmployee()
	emp.DeviceID = ""

	dec := EvaluateClockAttempt(emp, locatedBranch(), atBranch(), "device-new")
	if !dec.Accept {
		t.Fatalf("expected accept, got: %s", dec.Reason)
	}
	if !dec.BindDevice {
		t.Error("expected BindDevice for the first seen device")
	}
	if dec.Warning != "" {
		t.Errorf("unexpected warning: %q", dec.Warning)
	}
}

func TestEvaluateClockAttempt_BranchWithoutLocationAccepts(t *testing.T) {
	branch := &Branch{Name: "Kopi Segar Baru"}
	far := Coordinates{Latitude: branchLat + 1, Longitude: branchLon + 1}

	dec := EvaluateClockAttempt(activeEmployee(), branch, far, "device-a")
	if !dec.Accept {
		t.Fatalf("branch without location must accept, got: %s", dec.Reason)
	}
}

func TestEvaluateClockAttempt_DefaultRadiusWhenUnset(t *testing.T) {
	branch := locatedBranch()
	branch.MaxRadius = 0

	// ~150 m away: outside the 100 m default.
	far := Coordinates{Latitude: branchLat + 150.0/111320.0, Longitude: branchLon}
	dec := EvaluateClockAttempt(activeEmployee(), branch, far, "device-a")
	if dec.Accept {
		t.Fatal("expected rejection outside the default radius")
	}
}
