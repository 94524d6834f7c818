package catalog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repositories --

type mockDeviceRepo struct {
	devices map[uuid.UUID]*Device
}

func newMockDeviceRepo() *mockDeviceRepo {
	return &mockDeviceRepo{devices: make(map[uuid.UUID]*Device)}
}

func (m *mockDeviceRepo) Create(_ context.Context, d *Device) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now()
	d.UpdatedAt = time.Now()
	m.devices[d.ID] = d
	return nil
}

func (m *mockDeviceRepo) GetByID(_ context.Context, id uuid.UUID) (*Device, error) {
	d, ok := m.devices[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return d, nil
}

func (m *mockDeviceRepo) Update(_ context.Context, d *Device) error {
	if _, ok := m.devices[d.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.devices[d.ID] = d
	return nil
}

func (m *mockDeviceRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.devices, id)
	return nil
}

func (m *mockDeviceRepo) List(_ context.Context, limit, offset int) ([]*Device, int, error) {
	var result []*Device
	for _, d := range m.devices {
		result = append(result, d)
	}
	return result, len(result), nil
}

type mockExaminationRepo struct {
	exams map[uuid.UUID]*Examination
}

func newMockExaminationRepo() *mockExaminationRepo {
	return &mockExaminationRepo{exams: make(map[uuid.UUID]*Examination)}
}

func (m *mockExaminationRepo) Create(_ context.Context, e *Examination) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	m.exams[e.ID] = e
	return nil
}

func (m *mockExaminationRepo) GetByID(_ context.Context, id uuid.UUID) (*Examination, error) {
	e, ok := m.exams[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return e, nil
}

func (m *mockExaminationRepo) Update(_ context.Context, e *Examination) error {
	if _, ok := m.exams[e.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.exams[e.ID] = e
	return nil
}

func (m *mockExaminationRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.exams, id)
	return nil
}

func (m *mockExaminationRepo) List(_ context.Context, limit, offset int) ([]*Examination, int, error) {
	var result []*Examination
	for _, e := range m.exams {
		result = append(result, e)
	}
	return result, len(result), nil
}

func (m *mockExaminationRepo) ListByDevice(_ context.Context, deviceID uuid.UUID) ([]*Examination, error) {
	var result []*Examination
	for _, e := range m.exams {
		for _, id := range e.DeviceIDs {
			if id == deviceID {
				result = append(result, e)
				break
			}
		}
	}
	return result, nil
}

func newTestService() *Service {
	return NewService(newMockDeviceRepo(), newMockExaminationRepo())
}

// -- Device Tests --

func TestCreateDevice(t *testing.T) {
	svc := newTestService()
	monday := time.Monday

	d := &Device{
		Name:   "MRI Scanner A",
		Active: true,
		WorkingHours: []WorkingHoursRule{
			{Weekday: &monday, Start: "08:00", End: "17:00"},
		},
	}
	if err := svc.CreateDevice(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ID == uuid.Nil {
		t.Error("expected device id to be assigned")
	}
}

func TestCreateDevice_MissingName(t *testing.T) {
	svc := newTestService()
	if err := svc.CreateDevice(context.Background(), &Device{}); err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestCreateDevice_DuplicateWeekdayRule(t *testing.T) {
	svc := newTestService()
	monday := time.Monday

	d := &Device{
		Name: "MRI Scanner A",
		WorkingHours: []WorkingHoursRule{
			{Weekday: &monday, Start: "08:00", End: "12:00"},
			{Weekday: &monday, Start: "13:00", End: "17:00"},
		},
	}
	if err := svc.CreateDevice(context.Background(), d); err == nil {
		t.Fatal("expected error for duplicate weekday rule")
	}
}

func TestCreateDevice_InvalidRule(t *testing.T) {
	svc := newTestService()
	monday := time.Monday

	d := &Device{
		Name: "MRI Scanner A",
		WorkingHours: []WorkingHoursRule{
			{Weekday: &monday, Start: "17:00", End: "08:00"},
		},
	}
	if err := svc.CreateDevice(context.Background(), d); err == nil {
		t.Fatal("expected error for inverted window")
	}
}

func TestCreateDevice_BadExceptionDate(t *testing.T) {
	svc := newTestService()

	d := &Device{
		Name:       "MRI Scanner A",
		Exceptions: []Exception{{Date: "not-a-date"}},
	}
	if err := svc.CreateDevice(context.Background(), d); err == nil {
		t.Fatal("expected error for malformed exception date")
	}
}

func TestUpdateDevice_RequiresID(t *testing.T) {
	svc := newTestService()
	if err := svc.UpdateDevice(context.Background(), &Device{Name: "X"}); err == nil {
		t.Fatal("expected error for missing id")
	}
}

// -- Examination Tests --

func TestCreateExamination(t *testing.T) {
	svc := newTestService()

	e := &Examination{
		Name:            "Knee MRI",
		DurationMinutes: 30,
		DeviceIDs:       []uuid.UUID{uuid.New()},
	}
	if err := svc.CreateExamination(context.Background(), e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.GetExamination(context.Background(), e.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Knee MRI" {
		t.Errorf("expected Knee MRI, got %s", got.Name)
	}
}

func TestCreateExamination_InvalidDuration(t *testing.T) {
	svc := newTestService()

	for _, duration := range []int{0, -15} {
		e := &Examination{Name: "Knee MRI", DurationMinutes: duration}
		if err := svc.CreateExamination(context.Background(), e); err == nil {
			t.Errorf("expected error for duration %d", duration)
		}
	}
}

func TestListExaminationsByDevice(t *testing.T) {
	svc := newTestService()
	deviceID := uuid.New()

	linked := &Examination{Name: "Knee MRI", DurationMinutes: 30, DeviceIDs: []uuid.UUID{deviceID}}
	other := &Examination{Name: "Head CT", DurationMinutes: 15, DeviceIDs: []uuid.UUID{uuid.New()}}
	if err := svc.CreateExamination(context.Background(), linked); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.CreateExamination(context.Background(), other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	items, err := svc.ListExaminationsByDevice(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].Name != "Knee MRI" {
		t.Errorf("expected only the linked examination, got %d items", len(items))
	}
}
