package scheduling

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// SlotStatus is the lifecycle state of a time slot. Slots only ever move
// forward: blocked -> available -> booked.
type SlotStatus string

const (
	SlotBlocked   SlotStatus = "blocked"
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
)

// CanTransition reports whether from -> to is a legal forward step.
func CanTransition(from, to SlotStatus) bool {
	switch {
	case from == SlotBlocked && to == SlotAvailable:
		return true
	case from == SlotAvailable && to == SlotBooked:
		return true
	}
	return false
}

// Slot is one bookable interval on one device. Within a device, slot
// intervals never overlap. EndTime is always StartTime plus the
// examination's duration.
type Slot struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	DeviceID      uuid.UUID  `db:"device_id" json:"device_id"`
	ExaminationID uuid.UUID  `db:"examination_id" json:"examination_id"`
	Date          string     `db:"slot_date" json:"date"`
	StartTime     time.Time  `db:"start_time" json:"start_time"`
	EndTime       time.Time  `db:"end_time" json:"end_time"`
	Status        SlotStatus `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Group returns the release group this slot belongs to. At most one slot per
// group is available at any time.
func (s *Slot) Group() GroupKey {
	return GroupKey{ExaminationID: s.ExaminationID, Date: s.Date}
}

// GroupKey identifies a release group: all slots for one examination type on
// one calendar day, across every capable device.
type GroupKey struct {
	ExaminationID uuid.UUID `json:"examination_id"`
	Date          string    `json:"date"`
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.ExaminationID, k.Date)
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// PatientDetails is the patient payload attached to a booking. It is opaque
// to the scheduler and only validated syntactically.
type PatientDetails struct {
	FirstName   string `db:"first_name" json:"first_name" validate:"required"`
	LastName    string `db:"last_name" json:"last_name" validate:"required"`
	DateOfBirth string `db:"date_of_birth" json:"date_of_birth" validate:"required,datetime=2006-01-02"`
	Email       string `db:"email" json:"email" validate:"required,email"`
	Phone       string `db:"phone" json:"phone,omitempty" validate:"omitempty,min=5"`
}

// Appointment is a confirmed claim on a booked slot.
type Appointment struct {
	ID            uuid.UUID         `db:"id" json:"id"`
	SlotID        uuid.UUID         `db:"slot_id" json:"slot_id"`
	DeviceID      uuid.UUID         `db:"device_id" json:"device_id"`
	ExaminationID uuid.UUID         `db:"examination_id" json:"examination_id"`
	StartTime     time.Time         `db:"start_time" json:"start_time"`
	EndTime       time.Time         `db:"end_time" json:"end_time"`
	Patient       PatientDetails    `json:"patient"`
	InsuranceType string            `db:"insurance_type" json:"insurance_type"`
	BodySide      *string           `db:"body_side" json:"body_side,omitempty"`
	Status        AppointmentStatus `db:"status" json:"status"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// PoolEntry is the cached projection of the earliest open slot for one
// release group, shaped for direct rendering by booking clients.
type PoolEntry struct {
	ExaminationID uuid.UUID `json:"examination_id"`
	SlotDate      string    `json:"slot_date"`
	SlotID        uuid.UUID `json:"slot_id"`
	DeviceID      uuid.UUID `json:"device_id"`
	DeviceName    string    `json:"device_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

// GenerationReport summarizes one generator run.
type GenerationReport struct {
	SlotsCreated      int      `json:"slots_created"`
	SkippedDeviceDays int      `json:"skipped_device_days"`
	Errors            []string `json:"errors,omitempty"`
}

// SlotDate formats t as the calendar-day component of a group key.
func SlotDate(t time.Time) string {
	return t.UTC().Format(catalog.DateLayout)
}
