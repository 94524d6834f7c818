package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanbook/scanbook/internal/domain/catalog"
	"github.com/scanbook/scanbook/internal/platform/db"
)

// =========== Slot Repository ===========

type slotRepoPG struct{ pool *pgxpool.Pool }

func NewSlotRepoPG(pool *pgxpool.Pool) SlotRepository { return &slotRepoPG{pool: pool} }

func (r *slotRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const slotCols = `id, device_id, examination_id, slot_date, start_time, end_time, status, created_at, updated_at`

func (r *slotRepoPG) scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var date time.Time
	err := row.Scan(&s.ID, &s.DeviceID, &s.ExaminationID, &date, &s.StartTime, &s.EndTime,
		&s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Date = date.Format(catalog.DateLayout)
	return &s, nil
}

func (r *slotRepoPG) collect(rows pgx.Rows) ([]*Slot, error) {
	defer rows.Close()
	var items []*Slot
	for rows.Next() {
		s, err := r.scanSlot(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *slotRepoPG) Insert(ctx context.Context, s *Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Date == "" {
		s.Date = SlotDate(s.StartTime)
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO time_slots (id, device_id, examination_id, slot_date, start_time, end_time, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.DeviceID, s.ExaminationID, s.Date, s.StartTime, s.EndTime, s.Status)
	return err
}

func (r *slotRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	return r.scanSlot(r.conn(ctx).QueryRow(ctx, `SELECT `+slotCols+` FROM time_slots WHERE id = $1`, id))
}

func (r *slotRepoPG) FindOverlapping(ctx context.Context, deviceID uuid.UUID, start, end time.Time) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM time_slots
		WHERE device_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time ASC`, deviceID, start, end)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *slotRepoPG) Transition(ctx context.Context, id uuid.UUID, from, to SlotStatus) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE time_slots SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *slotRepoPG) ListByGroup(ctx context.Context, key GroupKey, status SlotStatus) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM time_slots
		WHERE examination_id = $1 AND slot_date = $2 AND status = $3
		ORDER BY start_time ASC, id ASC`, key.ExaminationID, key.Date, status)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *slotRepoPG) CountAvailable(ctx context.Context, key GroupKey) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM time_slots
		WHERE examination_id = $1 AND slot_date = $2 AND status = $3`,
		key.ExaminationID, key.Date, SlotAvailable).Scan(&n)
	return n, err
}

func (r *slotRepoPG) ListAvailable(ctx context.Context) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM time_slots WHERE status = $1
		ORDER BY examination_id, slot_date, start_time ASC, id ASC`, SlotAvailable)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

func (r *slotRepoPG) ListGroupsNeedingPromotion(ctx context.Context) ([]GroupKey, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT examination_id, slot_date FROM time_slots
		GROUP BY examination_id, slot_date
		HAVING COUNT(*) FILTER (WHERE status = 'available') = 0
		   AND COUNT(*) FILTER (WHERE status = 'blocked') > 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []GroupKey
	for rows.Next() {
		var k GroupKey
		var date time.Time
		if err := rows.Scan(&k.ExaminationID, &date); err != nil {
			return nil, err
		}
		k.Date = date.Format(catalog.DateLayout)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *slotRepoPG) ListByExaminationAndDate(ctx context.Context, examinationID uuid.UUID, date string) ([]*Slot, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+slotCols+` FROM time_slots
		WHERE examination_id = $1 AND slot_date = $2
		ORDER BY start_time ASC, id ASC`, examinationID, date)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, slot_id, device_id, examination_id, start_time, end_time,
	first_name, last_name, date_of_birth, email, phone,
	insurance_type, body_side, status, created_at, updated_at`

func (r *appointmentRepoPG) scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var dob time.Time
	err := row.Scan(&a.ID, &a.SlotID, &a.DeviceID, &a.ExaminationID, &a.StartTime, &a.EndTime,
		&a.Patient.FirstName, &a.Patient.LastName, &dob, &a.Patient.Email, &a.Patient.Phone,
		&a.InsuranceType, &a.BodySide, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Patient.DateOfBirth = dob.Format(catalog.DateLayout)
	return &a, nil
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, slot_id, device_id, examination_id, start_time, end_time,
			first_name, last_name, date_of_birth, email, phone, insurance_type, body_side, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, a.SlotID, a.DeviceID, a.ExaminationID, a.StartTime, a.EndTime,
		a.Patient.FirstName, a.Patient.LastName, a.Patient.DateOfBirth, a.Patient.Email, a.Patient.Phone,
		a.InsuranceType, a.BodySide, a.Status)
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *appointmentRepoPG) List(ctx context.Context, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	where := ``
	args := []interface{}{}
	if status != "" {
		where = ` WHERE status = $1`
		args = append(args, status)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY start_time ASC LIMIT $%d OFFSET $%d`, n+1, n+2)
	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := r.scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status AppointmentStatus) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	return err
}
