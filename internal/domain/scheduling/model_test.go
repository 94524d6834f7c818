package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCanTransition_OnlyForward(t *testing.T) {
	allowed := map[[2]SlotStatus]bool{
		{SlotBlocked, SlotAvailable}: true,
		{SlotAvailable, SlotBooked}:  true,
	}
	statuses := []SlotStatus{SlotBlocked, SlotAvailable, SlotBooked}
	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]SlotStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestSlot_Group(t *testing.T) {
	examID := uuid.New()
	s := &Slot{
		ExaminationID: examID,
		Date:          "2026-09-07",
		StartTime:     time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC),
	}
	key := s.Group()
	if key.ExaminationID != examID || key.Date != "2026-09-07" {
		t.Errorf("unexpected group key %+v", key)
	}
}

func TestSlotDate_UTC(t *testing.T) {
	// 00:30 CET on the 8th is 23:30 UTC on the 7th; group dates are always
	// computed in UTC.
	berlin := time.FixedZone("CET", 3600)
	local := time.Date(2026, 9, 8, 0, 30, 0, 0, berlin)
	if got := SlotDate(local); got != "2026-09-07" {
		t.Errorf("expected 2026-09-07, got %s", got)
	}
}
