package attendance

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

const (
	// EarthRadiusMeters is the mean Earth radius used by the Haversine
	// formula.
	EarthRadiusMeters = 6371000.0

	// DefaultMaxRadiusMeters applies when a branch has no radius
	// configured.
	DefaultMaxRadiusMeters = 100.0
)

// Employee is the staff view the geofence check needs. DeviceID is empty
// until the first clock action binds one.
type Employee struct {
	ID       uuid.UUID
	BranchID uuid.UUID
	DeviceID string
	IsActive bool
}

// Branch carries what the geofence check needs. Latitude/Longitude
// are nil when the branch has no registered location.
type Branch struct {
	Name      string
	Latitude  *float64
	Longitude *float64
	MaxRadius float64
}

// Coordinates is a submitted GPS position.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// ClockDecision is the outcome of a clock-in/out attempt. Warning is a
// non-fatal advisory (device mismatch) attached to an accepted attempt.
// BindDevice tells the caller to persist the first-seen device binding.
type ClockDecision struct {
	Accept     bool
	Reason     string
	Warning    string
	BindDevice bool
}

// DistanceMeters computes the great-circle distance between two points
// using the Haversine formula. Symmetric, zero for identical points.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// IsWithinRadius reports whether the user position lies within maxRadius
// meters of the branch position. A non-positive maxRadius falls back to
// DefaultMaxRadiusMeters.
func IsWithinRadius(branchLat, branchLon, userLat, userLon, maxRadius float64) bool {
	if maxRadius <= 0 {
		maxRadius = DefaultMaxRadiusMeters
	}
	return DistanceMeters(branchLat, branchLon, userLat, userLon) <= maxRadius
}

// EvaluateClockAttempt decides whether an employee may clock in/out from
// the submitted position.
//
// A missing or inactive employee is fatal. A device mismatch is only a
// warning: blocking on it would lock staff out after a browser cache
// clear, so the attempt proceeds and the mismatch is surfaced to the
// caller. A branch without a registered location accepts any position;
// that is deliberate so new branches work before their geofence is set up.
func EvaluateClockAttempt(emp *Employee, branch *Branch, coords Coordinates, deviceID string) ClockDecision {
	if emp == nil {
		return ClockDecision{Accept: false, Reason: "Employee not found"}
	}
	if !emp.IsActive {
		return ClockDecision{Accept: false, Reason: "Employee account is inactive"}
	}

	var warning string
	bindDevice := false
	if emp.DeviceID == "" {
		bindDevice = deviceID != ""
	} else if deviceID != "" && deviceID != emp.DeviceID {
		warning = "Attendance recorded from an unrecognized device"
	}

	if branch != nil && branch.Latitude != nil && branch.Longitude != nil {
		maxRadius := branch.MaxRadius
		if maxRadius <= 0 {
			maxRadius = DefaultMaxRadiusMeters
		}
		dist := DistanceMeters(*branch.Latitude, *branch.Longitude, coords.Latitude, coords.Longitude)
		if dist > maxRadius {
			return ClockDecision{
				Accept: false,
				Reason: fmt.Sprintf("You are %d m away from %s; attendance is only allowed within %d m",
					int(math.Round(dist)), branch.Name, int(maxRadius)),
			}
		}
	}

	return ClockDecision{Accept: true, Warning: warning, BindDevice: bindDevice}
}
