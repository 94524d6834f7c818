package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	devices      DeviceRepository
	examinations ExaminationRepository
}

func NewService(devices DeviceRepository, examinations ExaminationRepository) *Service {
	return &Service{devices: devices, examinations: examinations}
}

// -- Device --

func (s *Service) CreateDevice(ctx context.Context, d *Device) error {
	if err := validateDevice(d); err != nil {
		return err
	}
	return s.devices.Create(ctx, d)
}

func (s *Service) GetDevice(ctx context.Context, id uuid.UUID) (*Device, error) {
	return s.devices.GetByID(ctx, id)
}

func (s *Service) UpdateDevice(ctx context.Context, d *Device) error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("device id is required")
	}
	if err := validateDevice(d); err != nil {
		return err
	}
	return s.devices.Update(ctx, d)
}

func (s *Service) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	return s.devices.Delete(ctx, id)
}

func (s *Service) ListDevices(ctx context.Context, limit, offset int) ([]*Device, int, error) {
	return s.devices.List(ctx, limit, offset)
}

func validateDevice(d *Device) error {
	if d.Name == "" {
		return fmt.Errorf("device name is required")
	}
	seenWeekday := map[int]bool{}
	for i := range d.WorkingHours {
		wh := &d.WorkingHours[i]
		if err := wh.Validate(); err != nil {
			return err
		}
		if wh.Weekday != nil {
			if seenWeekday[int(*wh.Weekday)] {
				return fmt.Errorf("duplicate recurring rule for weekday %s", wh.Weekday)
			}
			seenWeekday[int(*wh.Weekday)] = true
		}
	}
	seenDate := map[string]bool{}
	for _, ex := range d.Exceptions {
		if _, err := time.Parse(DateLayout, ex.Date); err != nil {
			return fmt.Errorf("invalid exception date %q: want YYYY-MM-DD", ex.Date)
		}
		if seenDate[ex.Date] {
			return fmt.Errorf("duplicate exception for %s", ex.Date)
		}
		seenDate[ex.Date] = true
	}
	return nil
}

// -- Examination --

func (s *Service) CreateExamination(ctx context.Context, e *Examination) error {
	if err := validateExamination(e); err != nil {
		return err
	}
	return s.examinations.Create(ctx, e)
}

func (s *Service) GetExamination(ctx context.Context, id uuid.UUID) (*Examination, error) {
	return s.examinations.GetByID(ctx, id)
}

func (s *Service) UpdateExamination(ctx context.Context, e *Examination) error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("examination id is required")
	}
	if err := validateExamination(e); err != nil {
		return err
	}
	return s.examinations.Update(ctx, e)
}

func (s *Service) DeleteExamination(ctx context.Context, id uuid.UUID) error {
	return s.examinations.Delete(ctx, id)
}

func (s *Service) ListExaminations(ctx context.Context, limit, offset int) ([]*Examination, int, error) {
	return s.examinations.List(ctx, limit, offset)
}

func (s *Service) ListExaminationsByDevice(ctx context.Context, deviceID uuid.UUID) ([]*Examination, error) {
	return s.examinations.ListByDevice(ctx, deviceID)
}

func validateExamination(e *Examination) error {
	if e.Name == "" {
		return fmt.Errorf("examination name is required")
	}
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("duration_minutes must be positive, got %d", e.DurationMinutes)
	}
	for _, id := range e.DeviceIDs {
		if id == uuid.Nil {
			return fmt.Errorf("device_ids must not contain the zero id")
		}
	}
	return nil
}
