package scheduling

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Service is the facade over generation, release, booking and the pool.
type Service struct {
	slots        SlotRepository
	appointments AppointmentRepository
	generator    *Generator
	release      *Release
	booking      *Booking
	sweeper      *Sweeper
	pool         PoolCache
	log          zerolog.Logger
}

func NewService(slots SlotRepository, appointments AppointmentRepository,
	generator *Generator, release *Release, booking *Booking, sweeper *Sweeper,
	pool PoolCache, log zerolog.Logger) *Service {
	return &Service{
		slots:        slots,
		appointments: appointments,
		generator:    generator,
		release:      release,
		booking:      booking,
		sweeper:      sweeper,
		pool:         pool,
		log:          log,
	}
}

func (s *Service) GenerateSlots(ctx context.Context, params GenerateParams) (*GenerationReport, error) {
	return s.generator.Run(ctx, params)
}

// GetAvailableSlot returns the single open slot for the group, or nil when
// the group has none. The pool cache answers first; on a miss the store is
// consulted and the cache warmed.
func (s *Service) GetAvailableSlot(ctx context.Context, examinationID uuid.UUID, date string) (*PoolEntry, error) {
	entry, err := s.pool.Get(ctx, examinationID, date)
	if err != nil {
		s.log.Warn().Err(err).Msg("pool read failed, falling back to store")
	} else if entry != nil {
		return entry, nil
	}

	key := GroupKey{ExaminationID: examinationID, Date: date}
	open, err := s.slots.ListByGroup(ctx, key, SlotAvailable)
	if err != nil {
		return nil, err
	}
	if len(open) == 0 {
		return nil, nil
	}
	slot := open[0]
	s.release.refreshPool(ctx, slot)
	return &PoolEntry{
		ExaminationID: slot.ExaminationID,
		SlotDate:      slot.Date,
		SlotID:        slot.ID,
		DeviceID:      slot.DeviceID,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
	}, nil
}

// ListPool returns the cached earliest-slot entries for one examination.
func (s *Service) ListPool(ctx context.Context, examinationID uuid.UUID) ([]*PoolEntry, error) {
	return s.pool.ListByExamination(ctx, examinationID)
}

func (s *Service) ListSlots(ctx context.Context, examinationID uuid.UUID, date string) ([]*Slot, error) {
	return s.slots.ListByExaminationAndDate(ctx, examinationID, date)
}

func (s *Service) Book(ctx context.Context, req *BookingRequest) (*Appointment, error) {
	return s.booking.Book(ctx, req)
}

func (s *Service) Cancel(ctx context.Context, appointmentID uuid.UUID) (*Appointment, error) {
	return s.booking.Cancel(ctx, appointmentID)
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, status, limit, offset)
}

func (s *Service) Sweep(ctx context.Context) error {
	return s.sweeper.Sweep(ctx)
}
