package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotRepository is the slot store. Slots are append-only; the only mutation
// is the conditional status Transition.
type SlotRepository interface {
	Insert(ctx context.Context, s *Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*Slot, error)
	// FindOverlapping returns slots on the device whose interval intersects
	// [start, end).
	FindOverlapping(ctx context.Context, deviceID uuid.UUID, start, end time.Time) ([]*Slot, error)
	// Transition atomically moves the slot from one status to another. It
	// returns true iff the slot was still in the expected from status; a
	// false return means another writer got there first.
	Transition(ctx context.Context, id uuid.UUID, from, to SlotStatus) (bool, error)
	// ListByGroup returns the group's slots in the given status, ordered by
	// start time ascending with the id as deterministic tie-break.
	ListByGroup(ctx context.Context, key GroupKey, status SlotStatus) ([]*Slot, error)
	CountAvailable(ctx context.Context, key GroupKey) (int, error)
	// ListAvailable returns every available slot across all groups, for pool
	// rebuilds.
	ListAvailable(ctx context.Context) ([]*Slot, error)
	// ListGroupsNeedingPromotion returns groups with no available slot but at
	// least one blocked slot left.
	ListGroupsNeedingPromotion(ctx context.Context) ([]GroupKey, error)
	ListByExaminationAndDate(ctx context.Context, examinationID uuid.UUID, date string) ([]*Slot, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error
}
