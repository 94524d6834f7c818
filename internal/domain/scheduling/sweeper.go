package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// Sweeper repairs groups left without an open slot, for example after a
// crash between a slot claim and its follow-up promotion, and rebuilds the
// pool cache from the store.
type Sweeper struct {
	slots   SlotRepository
	devices catalog.DeviceRepository
	release *Release
	pool    PoolCache
	log     zerolog.Logger
	cron    *cron.Cron
}

func NewSweeper(slots SlotRepository, devices catalog.DeviceRepository, release *Release,
	pool PoolCache, log zerolog.Logger) *Sweeper {
	return &Sweeper{slots: slots, devices: devices, release: release, pool: pool, log: log}
}

// Sweep promotes every group that has blocked slots but nothing open, then
// rebuilds the pool cache from the set of available slots.
func (s *Sweeper) Sweep(ctx context.Context) error {
	groups, err := s.slots.ListGroupsNeedingPromotion(ctx)
	if err != nil {
		return err
	}
	promoted := 0
	for _, key := range groups {
		if _, err := s.release.PromoteEarliest(ctx, key); err != nil {
			if errors.Is(err, ErrPromotionConflict) {
				s.log.Warn().Str("group", key.String()).Msg("sweep promotion contended")
				continue
			}
			return err
		}
		promoted++
	}

	available, err := s.slots.ListAvailable(ctx)
	if err != nil {
		return err
	}
	names := map[uuid.UUID]string{}
	entries := make([]*PoolEntry, 0, len(available))
	for _, slot := range available {
		name, ok := names[slot.DeviceID]
		if !ok {
			if device, err := s.devices.GetByID(ctx, slot.DeviceID); err == nil {
				name = device.Name
			}
			names[slot.DeviceID] = name
		}
		entries = append(entries, &PoolEntry{
			ExaminationID: slot.ExaminationID,
			SlotDate:      slot.Date,
			SlotID:        slot.ID,
			DeviceID:      slot.DeviceID,
			DeviceName:    name,
			StartTime:     slot.StartTime,
			EndTime:       slot.EndTime,
		})
	}
	if err := s.pool.RebuildAll(ctx, entries); err != nil {
		return err
	}

	s.log.Info().
		Int("groups_checked", len(groups)).
		Int("groups_promoted", promoted).
		Int("pool_entries", len(entries)).
		Msg("sweep finished")
	return nil
}

// Start runs one sweep immediately and then on the given cron schedule
// (standard 5-field cron expression). Call Stop to halt the background runs.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if err := s.Sweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("startup sweep failed")
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if err := s.Sweep(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("scheduled sweep failed")
		}
	})
	if err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the scheduled sweeps and waits for a running one to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}
