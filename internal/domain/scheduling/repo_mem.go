package scheduling

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mutex-guarded in-memory slot store. Used by tests and by deployments that
// run without Postgres; it honors the same transition semantics as the pg
// implementation.
type slotRepoMem struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*Slot
}

func NewSlotRepoMem() SlotRepository {
	return &slotRepoMem{slots: make(map[uuid.UUID]*Slot)}
}

func (r *slotRepoMem) Insert(_ context.Context, s *Slot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Date == "" {
		s.Date = SlotDate(s.StartTime)
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now
	cp := *s
	r.slots[s.ID] = &cp
	return nil
}

func (r *slotRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok {
		return nil, fmt.Errorf("slot %s not found", id)
	}
	cp := *s
	return &cp, nil
}

func (r *slotRepoMem) FindOverlapping(_ context.Context, deviceID uuid.UUID, start, end time.Time) ([]*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Slot
	for _, s := range r.slots {
		if s.DeviceID == deviceID && s.StartTime.Before(end) && s.EndTime.After(start) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortSlots(out)
	return out, nil
}

func (r *slotRepoMem) Transition(_ context.Context, id uuid.UUID, from, to SlotStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[id]
	if !ok || s.Status != from {
		return false, nil
	}
	s.Status = to
	s.UpdatedAt = time.Now()
	return true, nil
}

func (r *slotRepoMem) ListByGroup(_ context.Context, key GroupKey, status SlotStatus) ([]*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Slot
	for _, s := range r.slots {
		if s.Group() == key && s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortSlots(out)
	return out, nil
}

func (r *slotRepoMem) CountAvailable(_ context.Context, key GroupKey) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.slots {
		if s.Group() == key && s.Status == SlotAvailable {
			n++
		}
	}
	return n, nil
}

func (r *slotRepoMem) ListAvailable(_ context.Context) ([]*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Slot
	for _, s := range r.slots {
		if s.Status == SlotAvailable {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortSlots(out)
	return out, nil
}

func (r *slotRepoMem) ListGroupsNeedingPromotion(_ context.Context) ([]GroupKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	available := map[GroupKey]int{}
	blocked := map[GroupKey]int{}
	for _, s := range r.slots {
		switch s.Status {
		case SlotAvailable:
			available[s.Group()]++
		case SlotBlocked:
			blocked[s.Group()]++
		}
	}
	var keys []GroupKey
	for key, n := range blocked {
		if n > 0 && available[key] == 0 {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].ExaminationID.String() < keys[j].ExaminationID.String()
	})
	return keys, nil
}

func (r *slotRepoMem) ListByExaminationAndDate(_ context.Context, examinationID uuid.UUID, date string) ([]*Slot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Slot
	for _, s := range r.slots {
		if s.ExaminationID == examinationID && s.Date == date {
			cp := *s
			out = append(out, &cp)
		}
	}
	sortSlots(out)
	return out, nil
}

func sortSlots(slots []*Slot) {
	sort.Slice(slots, func(i, j int) bool {
		if !slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].StartTime.Before(slots[j].StartTime)
		}
		return strings.Compare(slots[i].ID.String(), slots[j].ID.String()) < 0
	})
}

type appointmentRepoMem struct {
	mu    sync.Mutex
	appts map[uuid.UUID]*Appointment
}

func NewAppointmentRepoMem() AppointmentRepository {
	return &appointmentRepoMem{appts: make(map[uuid.UUID]*Appointment)}
}

func (r *appointmentRepoMem) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	r.appts[a.ID] = &cp
	return nil
}

func (r *appointmentRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s not found", id)
	}
	cp := *a
	return &cp, nil
}

func (r *appointmentRepoMem) List(_ context.Context, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*Appointment
	for _, a := range r.appts {
		if status != "" && a.Status != status {
			continue
		}
		cp := *a
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.Before(all[j].StartTime) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *appointmentRepoMem) UpdateStatus(_ context.Context, id uuid.UUID, status AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return fmt.Errorf("appointment %s not found", id)
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}
