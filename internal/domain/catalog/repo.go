package catalog

import (
	"context"

	"github.com/google/uuid"
)

type DeviceRepository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id uuid.UUID) (*Device, error)
	// Update replaces the device row together with its working hours and
	// exceptions.
	Update(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Device, int, error)
}

type ExaminationRepository interface {
	Create(ctx context.Context, e *Examination) error
	GetByID(ctx context.Context, id uuid.UUID) (*Examination, error)
	Update(ctx context.Context, e *Examination) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Examination, int, error)
	ListByDevice(ctx context.Context, deviceID uuid.UUID) ([]*Examination, error)
}
