package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PoolCache is the read-side projection of the earliest open slot per
// release group. It is best-effort: booking always re-validates against the
// slot store, and the sweep rebuilds it wholesale.
type PoolCache interface {
	// Get returns the cached entry for the group, or nil on a miss.
	Get(ctx context.Context, examinationID uuid.UUID, date string) (*PoolEntry, error)
	Put(ctx context.Context, e *PoolEntry) error
	Delete(ctx context.Context, examinationID uuid.UUID, date string) error
	// ListByExamination returns the cached entries for one examination,
	// ordered by slot date.
	ListByExamination(ctx context.Context, examinationID uuid.UUID) ([]*PoolEntry, error)
	// RebuildAll replaces the whole cache with the given entries.
	RebuildAll(ctx context.Context, entries []*PoolEntry) error
}

// =========== Redis implementation ===========

// Entries live in one hash per examination (key pool:<examination id>,
// field = slot date, value = JSON entry), so a per-examination listing is a
// single HGETALL.
type redisPool struct {
	client *redis.Client
}

func NewRedisPool(client *redis.Client) PoolCache {
	return &redisPool{client: client}
}

func poolKey(examinationID uuid.UUID) string {
	return "pool:" + examinationID.String()
}

func (p *redisPool) Get(ctx context.Context, examinationID uuid.UUID, date string) (*PoolEntry, error) {
	raw, err := p.client.HGet(ctx, poolKey(examinationID), date).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var e PoolEntry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *redisPool) Put(ctx context.Context, e *PoolEntry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.client.HSet(ctx, poolKey(e.ExaminationID), e.SlotDate, raw).Err()
}

func (p *redisPool) Delete(ctx context.Context, examinationID uuid.UUID, date string) error {
	return p.client.HDel(ctx, poolKey(examinationID), date).Err()
}

func (p *redisPool) ListByExamination(ctx context.Context, examinationID uuid.UUID) ([]*PoolEntry, error) {
	raw, err := p.client.HGetAll(ctx, poolKey(examinationID)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]*PoolEntry, 0, len(raw))
	for _, v := range raw {
		var e PoolEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	sortPoolEntries(entries)
	return entries, nil
}

func (p *redisPool) RebuildAll(ctx context.Context, entries []*PoolEntry) error {
	iter := p.client.Scan(ctx, 0, "pool:*", 0).Iterator()
	var stale []string
	for iter.Next(ctx) {
		stale = append(stale, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(stale) > 0 {
		if err := p.client.Del(ctx, stale...).Err(); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if err := p.Put(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// =========== In-memory implementation ===========

type memoryPool struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]map[string]*PoolEntry
}

func NewMemoryPool() PoolCache {
	return &memoryPool{entries: make(map[uuid.UUID]map[string]*PoolEntry)}
}

func (p *memoryPool) Get(_ context.Context, examinationID uuid.UUID, date string) (*PoolEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[examinationID][date]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (p *memoryPool) Put(_ context.Context, e *PoolEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	byDate, ok := p.entries[e.ExaminationID]
	if !ok {
		byDate = make(map[string]*PoolEntry)
		p.entries[e.ExaminationID] = byDate
	}
	cp := *e
	byDate[e.SlotDate] = &cp
	return nil
}

func (p *memoryPool) Delete(_ context.Context, examinationID uuid.UUID, date string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries[examinationID], date)
	return nil
}

func (p *memoryPool) ListByExamination(_ context.Context, examinationID uuid.UUID) ([]*PoolEntry, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var entries []*PoolEntry
	for _, e := range p.entries[examinationID] {
		cp := *e
		entries = append(entries, &cp)
	}
	sortPoolEntries(entries)
	return entries, nil
}

func (p *memoryPool) RebuildAll(_ context.Context, entries []*PoolEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[uuid.UUID]map[string]*PoolEntry)
	for _, e := range entries {
		byDate, ok := p.entries[e.ExaminationID]
		if !ok {
			byDate = make(map[string]*PoolEntry)
			p.entries[e.ExaminationID] = byDate
		}
		cp := *e
		byDate[e.SlotDate] = &cp
	}
	return nil
}

func sortPoolEntries(entries []*PoolEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].SlotDate < entries[j].SlotDate })
}
