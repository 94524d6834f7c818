package scheduling

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestGetAvailableSlot_WarmsPoolOnMiss(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)

	// Drop the cache entry the generation run created.
	if err := env.pool.Delete(context.Background(), key.ExaminationID, key.Date); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := env.svc.GetAvailableSlot(context.Background(), key.ExaminationID, key.Date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry == nil {
		t.Fatal("expected fallback to the store to find the open slot")
	}
	open := openSlot(t, env, key)
	if entry.SlotID != open.ID {
		t.Errorf("expected %s, got %s", open.ID, entry.SlotID)
	}

	// The miss warmed the cache.
	cached, err := env.pool.Get(context.Background(), key.ExaminationID, key.Date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cached == nil || cached.SlotID != open.ID {
		t.Error("expected cache to be warmed after the miss")
	}
}

func TestGetAvailableSlot_NilWhenGroupUnknown(t *testing.T) {
	env := newTestEnv()
	entry, err := env.svc.GetAvailableSlot(context.Background(), uuid.New(), "2026-09-07")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Error("expected nil for an unknown group")
	}
}

func TestListPool_PerExamination(t *testing.T) {
	env := newTestEnv()
	_, exam := env.seedDeviceAndExam("08:00", "10:00", 30)
	if _, err := env.generator.Run(context.Background(), GenerateParams{
		ExaminationIDs: []uuid.UUID{exam.ID},
		StartDate:      monday,
		Days:           3,
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}

	entries, err := env.svc.ListPool(context.Background(), exam.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Monday through Wednesday are working days, so three groups.
	if len(entries) != 3 {
		t.Fatalf("expected 3 pool entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].SlotDate < entries[i-1].SlotDate {
			t.Error("expected entries ordered by date")
		}
	}
}

func TestListSlots_ReturnsWholeGroup(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)

	slots, err := env.svc.ListSlots(context.Background(), key.ExaminationID, key.Date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for i := 1; i < len(slots); i++ {
		if slots[i].StartTime.Before(slots[i-1].StartTime) {
			t.Error("expected slots ordered by start time")
		}
	}
}

func TestListAppointments_FilterByStatus(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)

	first := openSlot(t, env, key)
	appt, err := env.svc.Book(context.Background(), validBookingRequest(first.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second := openSlot(t, env, key)
	if _, err := env.svc.Book(context.Background(), validBookingRequest(second.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.svc.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending, total, err := env.svc.ListAppointments(context.Background(), AppointmentPending, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || len(pending) != 1 {
		t.Fatalf("expected one pending appointment, got %d", total)
	}

	all, total, err := env.svc.ListAppointments(context.Background(), "", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("expected two appointments in total, got %d", total)
	}
}
