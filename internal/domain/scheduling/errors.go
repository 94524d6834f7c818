package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrSlotUnavailable is returned when a booking races another client to the
// same slot, or targets a slot that is not currently available. Clients are
// expected to re-fetch the open slot and retry.
var ErrSlotUnavailable = errors.New("slot no longer available")

// ErrPromotionConflict is returned when promotion loses the claim race more
// times than the configured retry budget. It is advisory: the group is being
// promoted by someone else or will be picked up by the sweep.
var ErrPromotionConflict = errors.New("promotion retries exhausted")

// ConfigurationError marks a device whose working hours cannot be
// interpreted for a given date. Generation skips the device-day and keeps
// going.
type ConfigurationError struct {
	DeviceID uuid.UUID
	Date     string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("device %s on %s: %s", e.DeviceID, e.Date, e.Reason)
}
