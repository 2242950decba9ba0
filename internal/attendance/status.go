package attendance

import (
	"time"

	"github.com/kopisegar/api/internal/enum"
)

// Record is the minimal attendance record view needed for status
// derivation.
type Record struct {
	Type      string
	Timestamp time.Time
}

// DayStatus is the derived daily clock state for one employee.
type DayStatus struct {
	Status      string
	LastClockIn *time.Time
}

// DeriveDailyStatus maps the latest attendance record of the day onto
// the daily state machine: no record means NOT_CLOCKED_IN, otherwise the
// latest record's type wins. Re-entry after a clock-out is allowed, so
// there is no terminal state within a day.
func DeriveDailyStatus(latest *Record) DayStatus {
	if latest == nil {
		return DayStatus{Status: enum.ClockStatusNotClockedIn}
	}
	if latest.Type == enum.AttendanceTypeClockIn {
		ts := latest.Timestamp
		return DayStatus{Status: enum.ClockStatusClockedIn, LastClockIn: &ts}
	}
	return DayStatus{Status: enum.ClockStatusClockedOut}
}

// DayWindowUTC returns the [start, end) bounds of the UTC calendar day
// containing t. All "today" queries use UTC so the day boundary is
// consistent across branches and server timezones.
func DayWindowUTC(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
