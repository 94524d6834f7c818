package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scanbook/scanbook/internal/domain/catalog"
)

// -- Mock catalog repositories --

type mockDeviceRepo struct {
	devices map[uuid.UUID]*catalog.Device
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{devices: make(map[uuid.UUID]*catalog.Device)}
}

func (m *mockDeviceRepo) Create(_ context.Context, d *catalog.Device) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	m.devices[d.ID] = d
	return nil
}

func (m *mockDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Device, error) {
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("device %s not found", id)
	}
	return d, nil
}

func (m *mockDeviceRepo) Update(_ context.Context, d *catalog.Device) error {
	m.devices[d.ID] = d
	return nil
}

func (m *mockDeviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.devices, id)
	return nil
}

func (m *mockDeviceRepo) List(_ context.Context, limit, offset int) ([]*catalog.Device, int, error) {
	var all []*catalog.Device
	for _, d := range m.devices {
		all = append(all, d)
	}
	return all, len(all), nil
}

type mockExaminationRepo struct {
	exams map[uuid.UUID]*catalog.Examination
}

func newMockExaminationRepo() *mockExaminationRepo {
	return &mockExaminationRepo{exams: make(map[uuid.UUID]*catalog.Examination)}
}

func (m *mockExaminationRepo) Create(_ context.Context, e *catalog.Examination) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.exams[e.ID] = e
	return nil
}

func (m *mockExaminationRepo) GetByID(_ context.Context, id uuid.UUID) (*catalog.Examination, error) {
	e, ok := m.exams[id]
	if !ok {
		return nil, fmt.Errorf("examination %s not found", id)
	}
	return e, nil
}

func (m *mockExaminationRepo) Update(_ context.Context, e *catalog.Examination) error {
	m.exams[e.ID] = e
	return nil
}

func (m *mockExaminationRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.exams, id)
	return nil
}

func (m *mockExaminationRepo) List(_ context.Context, limit, offset int) ([]*catalog.Examination, int, error) {
	var all []*catalog.Examination
	for _, e := range m.exams {
		all = append(all, e)
	}
	return all, len(all), nil
}

func (m *mockExaminationRepo) ListByDevice(_ context.Context, deviceID uuid.UUID) ([]*catalog.Examination, error) {
	var out []*catalog.Examination
	for _, e := range m.exams {
		for _, id := range e.DeviceIDs {
			if id == deviceID {
				out = append(out, e)
				break
			}
		}
	}
	return out, nil
}

// -- Test environment --

type testEnv struct {
	devices      *mockDeviceRepo
	examinations *mockExaminationRepo
	slots        SlotRepository
	appointments AppointmentRepository
	pool         PoolCache
	release      *Release
	generator    *Generator
	booking      *Booking
	sweeper      *Sweeper
	svc          *Service
}

func newTestEnv() *testEnv {
	log := zerolog.Nop()
	devices := newMockDeviceRepo()
	examinations := newMockExaminationRepo()
	slots := NewSlotRepoMem()
	appointments := NewAppointmentRepoMem()
	pool := NewMemoryPool()
	release := NewRelease(slots, devices, pool, 3, log)
	generator := NewGenerator(devices, examinations, slots, release, log)
	booking := NewBooking(slots, appointments, examinations, release, pool, log)
	sweeper := NewSweeper(slots, devices, release, pool, log)
	svc := NewService(slots, appointments, generator, release, booking, sweeper, pool, log)
	return &testEnv{
		devices:      devices,
		examinations: examinations,
		slots:        slots,
		appointments: appointments,
		pool:         pool,
		release:      release,
		generator:    generator,
		booking:      booking,
		sweeper:      sweeper,
		svc:          svc,
	}
}

// seedDeviceAndExam registers a device open Mon-Fri with the given hours and
// an examination of the given duration linked to it.
func (env *testEnv) seedDeviceAndExam(start, end string, durationMinutes int) (*catalog.Device, *catalog.Examination) {
	device := &catalog.Device{Name: "MRI Scanner A", Active: true}
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		weekday := wd
		device.WorkingHours = append(device.WorkingHours, catalog.WorkingHoursRule{
			Weekday: &weekday, Start: start, End: end,
		})
	}
	_ = env.devices.Create(context.Background(), device)

	exam := &catalog.Examination{
		Name:            "Knee MRI",
		DurationMinutes: durationMinutes,
		DeviceIDs:       []uuid.UUID{device.ID},
	}
	_ = env.examinations.Create(context.Background(), exam)
	return device, exam
}

// monday is a fixed Monday used across the tests.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func validBookingRequest(slotID uuid.UUID) *BookingRequest {
	return &BookingRequest{
		SlotID: slotID,
		Patient: PatientDetails{
			FirstName:   "Ada",
			LastName:    "Lovelace",
			DateOfBirth: "1990-12-10",
			Email:       "ada@example.org",
		},
		InsuranceType: "public",
	}
}
