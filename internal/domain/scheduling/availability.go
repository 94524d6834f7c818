package scheduling

import (
	"time"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// OpenWindow is a device's opening interval on one date, in minutes since
// midnight.
type OpenWindow struct {
	StartMinutes int
	EndMinutes   int
}

// ResolveOpenWindow computes when a device is open on the given date.
// Precedence: a closure exception wins outright, then a dated working-hours
// override, then the recurring rule for the weekday. No matching rule means
// the device is closed. A rule that cannot be interpreted yields a
// *ConfigurationError so callers can skip the device-day and continue.
func ResolveOpenWindow(device *catalog.Device, date time.Time) (OpenWindow, bool, error) {
	dateStr := date.UTC().Format(catalog.DateLayout)

	for _, ex := range device.Exceptions {
		if ex.Date == dateStr {
			return OpenWindow{}, false, nil
		}
	}

	var rule *catalog.WorkingHoursRule
	for i := range device.WorkingHours {
		r := &device.WorkingHours[i]
		if r.Date != nil && *r.Date == dateStr {
			rule = r
			break
		}
	}
	if rule == nil {
		weekday := date.UTC().Weekday()
		for i := range device.WorkingHours {
			r := &device.WorkingHours[i]
			if r.Weekday != nil && *r.Weekday == weekday {
				rule = r
				break
			}
		}
	}
	if rule == nil {
		return OpenWindow{}, false, nil
	}

	start, err := catalog.ParseClock(rule.Start)
	if err != nil {
		return OpenWindow{}, false, &ConfigurationError{DeviceID: device.ID, Date: dateStr, Reason: err.Error()}
	}
	end, err := catalog.ParseClock(rule.End)
	if err != nil {
		return OpenWindow{}, false, &ConfigurationError{DeviceID: device.ID, Date: dateStr, Reason: err.Error()}
	}
	if end <= start {
		return OpenWindow{}, false, &ConfigurationError{
			DeviceID: device.ID, Date: dateStr,
			Reason: "working hours end at or before start",
		}
	}
	return OpenWindow{StartMinutes: start, EndMinutes: end}, true, nil
}
