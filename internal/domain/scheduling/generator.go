package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// Generator materializes bookable slots from device working hours. Every new
// slot enters the store blocked; the release scheduler decides which one
// becomes visible.
type Generator struct {
	devices      catalog.DeviceRepository
	examinations catalog.ExaminationRepository
	slots        SlotRepository
	release      *Release
	log          zerolog.Logger
}

func NewGenerator(devices catalog.DeviceRepository, examinations catalog.ExaminationRepository,
	slots SlotRepository, release *Release, log zerolog.Logger) *Generator {
	return &Generator{
		devices:      devices,
		examinations: examinations,
		slots:        slots,
		release:      release,
		log:          log,
	}
}

// GenerateParams bounds one generation run. Empty ExaminationIDs means every
// examination; empty DeviceIDs means every device linked to the examination.
type GenerateParams struct {
	ExaminationIDs []uuid.UUID `json:"examination_ids"`
	DeviceIDs      []uuid.UUID `json:"device_ids"`
	StartDate      time.Time   `json:"start_date"`
	Days           int         `json:"days"`
}

// Run generates slots for the window [StartDate, StartDate+Days). The run is
// idempotent: intervals already covered by an existing slot are skipped, so
// re-running over the same window creates nothing. Device-days with broken
// working-hours configuration are reported and skipped, never fatal.
func (g *Generator) Run(ctx context.Context, params GenerateParams) (*GenerationReport, error) {
	if params.Days <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", params.Days)
	}
	start := params.StartDate.UTC()
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	exams, err := g.resolveExaminations(ctx, params.ExaminationIDs)
	if err != nil {
		return nil, err
	}

	report := &GenerationReport{}
	touched := map[GroupKey]bool{}
	deviceCache := map[uuid.UUID]*catalog.Device{}

	for _, exam := range exams {
		if exam.DurationMinutes <= 0 {
			report.Errors = append(report.Errors,
				fmt.Sprintf("examination %s: non-positive duration", exam.ID))
			continue
		}
		for _, deviceID := range filterIDs(exam.DeviceIDs, params.DeviceIDs) {
			device := deviceCache[deviceID]
			if device == nil {
				device, err = g.devices.GetByID(ctx, deviceID)
				if err != nil {
					report.Errors = append(report.Errors,
						fmt.Sprintf("device %s: %v", deviceID, err))
					continue
				}
				deviceCache[deviceID] = device
			}
			if !device.Active {
				continue
			}
			for day := 0; day < params.Days; day++ {
				date := start.AddDate(0, 0, day)
				created, err := g.generateDeviceDay(ctx, device, exam, date)
				if err != nil {
					report.Errors = append(report.Errors, err.Error())
					report.SkippedDeviceDays++
					continue
				}
				if created < 0 {
					report.SkippedDeviceDays++
					continue
				}
				report.SlotsCreated += created
				touched[GroupKey{ExaminationID: exam.ID, Date: SlotDate(date)}] = true
			}
		}
	}

	// Newly generated groups start fully blocked; open the earliest slot in
	// each one.
	for key := range touched {
		if _, err := g.release.PromoteEarliest(ctx, key); err != nil {
			g.log.Warn().Err(err).Str("group", key.String()).Msg("post-generation promotion failed")
		}
	}

	g.log.Info().
		Int("slots_created", report.SlotsCreated).
		Int("skipped_device_days", report.SkippedDeviceDays).
		Int("errors", len(report.Errors)).
		Msg("slot generation finished")
	return report, nil
}

// generateDeviceDay returns the number of slots created, or -1 when the
// device is closed that day.
func (g *Generator) generateDeviceDay(ctx context.Context, device *catalog.Device, exam *catalog.Examination, date time.Time) (int, error) {
	window, open, err := ResolveOpenWindow(device, date)
	if err != nil {
		return 0, err
	}
	if !open {
		return -1, nil
	}

	created := 0
	duration := time.Duration(exam.DurationMinutes) * time.Minute
	cursor := date.Add(time.Duration(window.StartMinutes) * time.Minute)
	windowEnd := date.Add(time.Duration(window.EndMinutes) * time.Minute)

	for !cursor.Add(duration).After(windowEnd) {
		slotEnd := cursor.Add(duration)
		overlapping, err := g.slots.FindOverlapping(ctx, device.ID, cursor, slotEnd)
		if err != nil {
			return created, err
		}
		if len(overlapping) == 0 {
			slot := &Slot{
				DeviceID:      device.ID,
				ExaminationID: exam.ID,
				Date:          SlotDate(cursor),
				StartTime:     cursor,
				EndTime:       slotEnd,
				Status:        SlotBlocked,
			}
			if err := g.slots.Insert(ctx, slot); err != nil {
				return created, err
			}
			created++
		}
		cursor = slotEnd
	}
	return created, nil
}

func (g *Generator) resolveExaminations(ctx context.Context, ids []uuid.UUID) ([]*catalog.Examination, error) {
	if len(ids) == 0 {
		const pageSize = 200
		var exams []*catalog.Examination
		for offset := 0; ; offset += pageSize {
			page, total, err := g.examinations.List(ctx, pageSize, offset)
			if err != nil {
				return nil, err
			}
			exams = append(exams, page...)
			if len(page) == 0 || len(exams) >= total {
				break
			}
		}
		return exams, nil
	}
	var exams []*catalog.Examination
	for _, id := range ids {
		exam, err := g.examinations.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("examination %s: %w", id, err)
		}
		exams = append(exams, exam)
	}
	return exams, nil
}

func filterIDs(all, wanted []uuid.UUID) []uuid.UUID {
	if len(wanted) == 0 {
		return all
	}
	keep := map[uuid.UUID]bool{}
	for _, id := range wanted {
		keep[id] = true
	}
	var out []uuid.UUID
	for _, id := range all {
		if keep[id] {
			out = append(out, id)
		}
	}
	return out
}
