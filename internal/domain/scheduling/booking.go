package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// BookingRequest is the payload for claiming a slot.
type BookingRequest struct {
	SlotID        uuid.UUID      `json:"slot_id" validate:"required"`
	Patient       PatientDetails `json:"patient" validate:"required"`
	InsuranceType string         `json:"insurance_type" validate:"required,oneof=public private"`
	BodySide      *string        `json:"body_side" validate:"omitempty,oneof=left right"`
}

// Booking coordinates the claim of a slot with the release of the next one.
type Booking struct {
	slots        SlotRepository
	appointments AppointmentRepository
	examinations catalog.ExaminationRepository
	release      *Release
	pool         PoolCache
	validate     *validator.Validate
	log          zerolog.Logger
}

func NewBooking(slots SlotRepository, appointments AppointmentRepository,
	examinations catalog.ExaminationRepository, release *Release, pool PoolCache,
	log zerolog.Logger) *Booking {
	return &Booking{
		slots:        slots,
		appointments: appointments,
		examinations: examinations,
		release:      release,
		pool:         pool,
		validate:     validator.New(),
		log:          log,
	}
}

// Book claims the slot and promotes the group's next slot. The claim is a
// single compare-and-swap from available to booked, so of N concurrent
// bookings of the same slot exactly one succeeds; the rest get
// ErrSlotUnavailable and should re-fetch the group's open slot.
func (b *Booking) Book(ctx context.Context, req *BookingRequest) (*Appointment, error) {
	if err := b.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid booking request: %w", err)
	}

	slot, err := b.slots.GetByID(ctx, req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("slot lookup: %w", err)
	}

	exam, err := b.examinations.GetByID(ctx, slot.ExaminationID)
	if err != nil {
		return nil, fmt.Errorf("examination lookup: %w", err)
	}
	if exam.BodySideRequired && req.BodySide == nil {
		return nil, fmt.Errorf("examination %s requires a body side", exam.Name)
	}

	if slot.Status != SlotAvailable {
		return nil, ErrSlotUnavailable
	}
	ok, err := b.slots.Transition(ctx, slot.ID, SlotAvailable, SlotBooked)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSlotUnavailable
	}

	appt := &Appointment{
		SlotID:        slot.ID,
		DeviceID:      slot.DeviceID,
		ExaminationID: slot.ExaminationID,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
		Patient:       req.Patient,
		InsuranceType: req.InsuranceType,
		BodySide:      req.BodySide,
		Status:        AppointmentPending,
	}
	if err := b.appointments.Create(ctx, appt); err != nil {
		// The slot stays booked; the appointment write failed after the
		// claim, which the sweep cannot undo. Surface the error loudly.
		b.log.Error().Err(err).Str("slot_id", slot.ID.String()).Msg("appointment create failed after slot claim")
		return nil, err
	}

	// Open the next slot in the group. A conflict means a concurrent booking
	// or the sweep already did it.
	if _, err := b.release.PromoteEarliest(ctx, slot.Group()); err != nil {
		if errors.Is(err, ErrPromotionConflict) {
			b.log.Warn().Str("group", slot.Group().String()).Msg("promotion contended, deferring to sweep")
		} else {
			b.log.Error().Err(err).Str("group", slot.Group().String()).Msg("promotion failed")
		}
	}

	b.log.Info().
		Str("appointment_id", appt.ID.String()).
		Str("slot_id", slot.ID.String()).
		Str("group", slot.Group().String()).
		Msg("slot booked")
	return appt, nil
}

// Cancel marks the appointment cancelled. The booked slot is never reopened:
// its interval may no longer match current working hours, and reopening
// would put a later slot in front of already-promoted earlier ones. If the
// group has nothing open, cancellation promotes speculatively so remaining
// blocked capacity is not stranded.
func (b *Booking) Cancel(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	appt, err := b.appointments.GetByID(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("appointment lookup: %w", err)
	}
	if appt.Status == AppointmentCancelled {
		return appt, nil
	}
	if err := b.appointments.UpdateStatus(ctx, appointmentID, AppointmentCancelled); err != nil {
		return nil, err
	}
	appt.Status = AppointmentCancelled

	key := GroupKey{ExaminationID: appt.ExaminationID, Date: SlotDate(appt.StartTime)}
	if _, err := b.release.PromoteEarliest(ctx, key); err != nil && !errors.Is(err, ErrPromotionConflict) {
		b.log.Error().Err(err).Str("group", key.String()).Msg("post-cancel promotion failed")
	}

	b.log.Info().Str("appointment_id", appointmentID.String()).Msg("appointment cancelled")
	return appt, nil
}
