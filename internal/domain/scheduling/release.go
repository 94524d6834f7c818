package scheduling

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// Release opens exactly one slot per group. It is the only code path that
// moves a slot from blocked to available.
type Release struct {
	slots   SlotRepository
	devices catalog.DeviceRepository
	pool    PoolCache
	retries int
	log     zerolog.Logger
}

func NewRelease(slots SlotRepository, devices catalog.DeviceRepository, pool PoolCache,
	retries int, log zerolog.Logger) *Release {
	if retries < 1 {
		retries = 1
	}
	return &Release{slots: slots, devices: devices, pool: pool, retries: retries, log: log}
}

// PromoteEarliest ensures the group exposes its earliest remaining slot. If
// an available slot already exists, or no blocked slot is left, it is a
// no-op. The promotion itself is a compare-and-swap on the earliest blocked
// slot; losing the swap means a concurrent promoter acted, so the state is
// re-read and the claim retried up to the configured budget. Returns the
// promoted slot, or nil when nothing changed.
func (r *Release) PromoteEarliest(ctx context.Context, key GroupKey) (*Slot, error) {
	for attempt := 0; attempt < r.retries; attempt++ {
		// The CAS candidate must come from a read taken no later than the
		// zero-available check. A racing promotion can then only hit the
		// candidate itself: the swap fails and the retry sees the open
		// slot, so the group never ends up with two.
		blocked, err := r.slots.ListByGroup(ctx, key, SlotBlocked)
		if err != nil {
			return nil, err
		}

		n, err := r.slots.CountAvailable(ctx, key)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, nil
		}

		if len(blocked) == 0 {
			// Group exhausted: drop any stale pool entry.
			if err := r.pool.Delete(ctx, key.ExaminationID, key.Date); err != nil {
				r.log.Warn().Err(err).Str("group", key.String()).Msg("pool delete failed")
			}
			return nil, nil
		}

		candidate := blocked[0]
		ok, err := r.slots.Transition(ctx, candidate.ID, SlotBlocked, SlotAvailable)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		candidate.Status = SlotAvailable
		r.refreshPool(ctx, candidate)
		r.log.Debug().
			Str("group", key.String()).
			Str("slot_id", candidate.ID.String()).
			Time("start", candidate.StartTime).
			Msg("slot promoted")
		return candidate, nil
	}
	return nil, ErrPromotionConflict
}

func (r *Release) refreshPool(ctx context.Context, slot *Slot) {
	entry := &PoolEntry{
		ExaminationID: slot.ExaminationID,
		SlotDate:      slot.Date,
		SlotID:        slot.ID,
		DeviceID:      slot.DeviceID,
		StartTime:     slot.StartTime,
		EndTime:       slot.EndTime,
	}
	if device, err := r.devices.GetByID(ctx, slot.DeviceID); err == nil {
		entry.DeviceName = device.Name
	}
	if err := r.pool.Put(ctx, entry); err != nil {
		r.log.Warn().Err(err).Str("slot_id", slot.ID.String()).Msg("pool update failed")
	}
}
