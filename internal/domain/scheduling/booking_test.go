package scheduling

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// generateAndOpen seeds a device and examination, generates one day of slots
// and returns the examination with the group key.
func generateAndOpen(t *testing.T, env *testEnv) (*catalog.Examination, GroupKey) {
	t.Helper()
	_, exam := env.seedDeviceAndExam("08:00", "10:00", 30)
	if _, err := env.generator.Run(context.Background(), GenerateParams{
		ExaminationIDs: []uuid.UUID{exam.ID},
		StartDate:      monday,
		Days:           1,
	}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	return exam, GroupKey{ExaminationID: exam.ID, Date: monday.Format(catalog.DateLayout)}
}

func openSlot(t *testing.T, env *testEnv, key GroupKey) *Slot {
	t.Helper()
	open, err := env.slots.ListByGroup(context.Background(), key, SlotAvailable)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("expected exactly one open slot, got %d", len(open))
	}
	return open[0]
}

func TestBook_ClaimsSlotAndPromotesNext(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)
	slot := openSlot(t, env, key)

	appt, err := env.booking.Book(context.Background(), validBookingRequest(slot.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.Status != AppointmentPending {
		t.Errorf("expected pending appointment, got %s", appt.Status)
	}
	if appt.SlotID != slot.ID {
		t.Errorf("appointment bound to %s, booked %s", appt.SlotID, slot.ID)
	}

	booked, _ := env.slots.GetByID(context.Background(), slot.ID)
	if booked.Status != SlotBooked {
		t.Errorf("expected slot to be booked, got %s", booked.Status)
	}

	// The next-earliest slot is now the open one.
	next := openSlot(t, env, key)
	if !next.StartTime.Equal(slot.StartTime.Add(30 * time.Minute)) {
		t.Errorf("expected 08:30 to open next, got %s", next.StartTime)
	}
}

func TestBook_SequentialWalkToExhaustion(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)

	expected := []time.Time{
		monday.Add(8 * time.Hour),
		monday.Add(8*time.Hour + 30*time.Minute),
		monday.Add(9 * time.Hour),
		monday.Add(9*time.Hour + 30*time.Minute),
	}
	for _, want := range expected {
		slot := openSlot(t, env, key)
		if !slot.StartTime.Equal(want) {
			t.Fatalf("expected open slot at %s, got %s", want, slot.StartTime)
		}
		if _, err := env.booking.Book(context.Background(), validBookingRequest(slot.ID)); err != nil {
			t.Fatalf("booking %s: %v", want, err)
		}
	}

	n, _ := env.slots.CountAvailable(context.Background(), key)
	if n != 0 {
		t.Errorf("expected group to be exhausted, %d still available", n)
	}
	entry, err := env.svc.GetAvailableSlot(context.Background(), key.ExaminationID, key.Date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry != nil {
		t.Error("expected no open slot after exhaustion")
	}
}

func TestBook_ConcurrentClaimsOneWinner(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)
	slot := openSlot(t, env, key)

	const n = 16
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.booking.Book(context.Background(), validBookingRequest(slot.ID))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	won, lost := 0, 0
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotUnavailable):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("expected exactly one winner, got %d", won)
	}
	if lost != n-1 {
		t.Errorf("expected %d losers, got %d", n-1, lost)
	}

	// The invariant holds after the race.
	count, _ := env.slots.CountAvailable(context.Background(), key)
	if count > 1 {
		t.Errorf("single-open-slot violated: %d available", count)
	}
}

func TestBook_UnavailableSlot(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)

	blocked, err := env.slots.ListByGroup(context.Background(), key, SlotBlocked)
	if err != nil || len(blocked) == 0 {
		t.Fatalf("expected blocked slots, err=%v", err)
	}
	if _, err := env.booking.Book(context.Background(), validBookingRequest(blocked[0].ID)); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable for a blocked slot, got %v", err)
	}
}

func TestBook_ValidatesPayload(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)
	slot := openSlot(t, env, key)

	req := validBookingRequest(slot.ID)
	req.Patient.Email = "not-an-email"
	if _, err := env.booking.Book(context.Background(), req); err == nil {
		t.Fatal("expected validation error for bad email")
	}

	req = validBookingRequest(slot.ID)
	req.InsuranceType = "gold"
	if _, err := env.booking.Book(context.Background(), req); err == nil {
		t.Fatal("expected validation error for unknown insurance type")
	}

	// Validation failures must not consume the slot.
	still, _ := env.slots.GetByID(context.Background(), slot.ID)
	if still.Status != SlotAvailable {
		t.Errorf("expected slot untouched, got %s", still.Status)
	}
}

func TestBook_BodySideRequired(t *testing.T) {
	env := newTestEnv()
	exam, key := generateAndOpen(t, env)
	exam.BodySideRequired = true
	slot := openSlot(t, env, key)

	if _, err := env.booking.Book(context.Background(), validBookingRequest(slot.ID)); err == nil {
		t.Fatal("expected error when body side is missing")
	}

	req := validBookingRequest(slot.ID)
	side := "left"
	req.BodySide = &side
	if _, err := env.booking.Book(context.Background(), req); err != nil {
		t.Fatalf("unexpected error with body side set: %v", err)
	}
}

func TestCancel_SlotStaysBooked(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)
	slot := openSlot(t, env, key)

	appt, err := env.booking.Book(context.Background(), validBookingRequest(slot.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cancelled, err := env.booking.Cancel(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != AppointmentCancelled {
		t.Errorf("expected cancelled, got %s", cancelled.Status)
	}

	booked, _ := env.slots.GetByID(context.Background(), slot.ID)
	if booked.Status != SlotBooked {
		t.Errorf("cancelled booking must not reopen its slot, got %s", booked.Status)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)
	slot := openSlot(t, env, key)
	appt, _ := env.booking.Book(context.Background(), validBookingRequest(slot.ID))

	if _, err := env.booking.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again, err := env.booking.Cancel(context.Background(), appt.ID)
	if err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if again.Status != AppointmentCancelled {
		t.Errorf("expected cancelled, got %s", again.Status)
	}
}

func TestCancel_PromotesWhenGroupExhausted(t *testing.T) {
	env := newTestEnv()
	_, key := generateAndOpen(t, env)

	// Book the open slot, then freeze the group by booking its replacement,
	// leaving two blocked.
	first := openSlot(t, env, key)
	appt, err := env.booking.Book(context.Background(), validBookingRequest(first.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Simulate a crash that left the group closed: demote by booking the
	// currently open slot directly in the store without promotion.
	second := openSlot(t, env, key)
	if ok, _ := env.slots.Transition(context.Background(), second.ID, SlotAvailable, SlotBooked); !ok {
		t.Fatal("setup transition failed")
	}
	if n, _ := env.slots.CountAvailable(context.Background(), key); n != 0 {
		t.Fatal("setup: expected closed group")
	}

	if _, err := env.booking.Cancel(context.Background(), appt.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Cancellation noticed the closed group and released the next slot.
	n, _ := env.slots.CountAvailable(context.Background(), key)
	if n != 1 {
		t.Errorf("expected speculative promotion to open one slot, got %d", n)
	}
}
