package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Device is a physical examination device (scanner) with its opening rules.
type Device struct {
	ID           uuid.UUID          `db:"id" json:"id"`
	Name         string             `db:"name" json:"name"`
	Active       bool               `db:"active" json:"active"`
	WorkingHours []WorkingHoursRule `json:"working_hours"`
	Exceptions   []Exception        `json:"exceptions"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at" json:"updated_at"`
}

// WorkingHoursRule describes when a device is open. Exactly one of Weekday
// (recurring rule) or Date (override for a single calendar day) is set. A
// dated override takes precedence over the recurring rule for that weekday.
type WorkingHoursRule struct {
	ID       uuid.UUID     `db:"id" json:"id"`
	DeviceID uuid.UUID     `db:"device_id" json:"device_id"`
	Weekday  *time.Weekday `db:"weekday" json:"weekday,omitempty"`
	Date     *string       `db:"rule_date" json:"date,omitempty"`
	Start    string        `db:"start_clock" json:"start"`
	End      string        `db:"end_clock" json:"end"`
}

// Validate checks the rule's shape without touching the store.
func (r *WorkingHoursRule) Validate() error {
	if (r.Weekday == nil) == (r.Date == nil) {
		return fmt.Errorf("working hours rule needs exactly one of weekday or date")
	}
	if r.Weekday != nil && (*r.Weekday < time.Sunday || *r.Weekday > time.Saturday) {
		return fmt.Errorf("invalid weekday %d", *r.Weekday)
	}
	if r.Date != nil {
		if _, err := time.Parse(DateLayout, *r.Date); err != nil {
			return fmt.Errorf("invalid rule date %q: %w", *r.Date, err)
		}
	}
	start, err := ParseClock(r.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(r.End)
	if err != nil {
		return err
	}
	if end <= start {
		return fmt.Errorf("working hours end %q must be after start %q", r.End, r.Start)
	}
	return nil
}

// ParseClock converts a wall-clock "HH:MM" string to minutes since midnight.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("invalid clock value %q: want HH:MM", s)
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Exception marks a date on which a device is fully closed.
type Exception struct {
	ID       uuid.UUID `db:"id" json:"id"`
	DeviceID uuid.UUID `db:"device_id" json:"device_id"`
	Date     string    `db:"exception_date" json:"date"`
	Reason   *string   `db:"reason" json:"reason,omitempty"`
}

// Examination is a bookable examination type. Slots for it can be generated
// on any of the linked devices.
type Examination struct {
	ID               uuid.UUID   `db:"id" json:"id"`
	Name             string      `db:"name" json:"name"`
	DurationMinutes  int         `db:"duration_minutes" json:"duration_minutes"`
	BodySideRequired bool        `db:"body_side_required" json:"body_side_required"`
	DeviceIDs        []uuid.UUID `json:"device_ids"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"`
}
