package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scanbook/scanbook/internal/platform/db"
)

// =========== Device Repository ===========

type deviceRepoPG struct{ pool *pgxpool.Pool }

func NewDeviceRepoPG(pool *pgxpool.Pool) DeviceRepository { return &deviceRepoPG{pool: pool} }

func (r *deviceRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *deviceRepoPG) Create(ctx context.Context, d *Device) error {
	d.ID = uuid.New()
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO devices (id, name, active) VALUES ($1,$2,$3)`,
			d.ID, d.Name, d.Active); err != nil {
			return err
		}
		return r.insertRules(ctx, d)
	})
}

func (r *deviceRepoPG) insertRules(ctx context.Context, d *Device) error {
	for i := range d.WorkingHours {
		wh := &d.WorkingHours[i]
		wh.ID = uuid.New()
		wh.DeviceID = d.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO device_working_hours (id, device_id, weekday, rule_date, start_clock, end_clock)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			wh.ID, wh.DeviceID, wh.Weekday, wh.Date, wh.Start, wh.End); err != nil {
			return err
		}
	}
	for i := range d.Exceptions {
		ex := &d.Exceptions[i]
		ex.ID = uuid.New()
		ex.DeviceID = d.ID
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO device_exceptions (id, device_id, exception_date, reason)
			VALUES ($1,$2,$3,$4)`,
			ex.ID, ex.DeviceID, ex.Date, ex.Reason); err != nil {
			return err
		}
	}
	return nil
}

func (r *deviceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Device, error) {
	var d Device
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, name, active, created_at, updated_at FROM devices WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if d.WorkingHours, err = r.loadRules(ctx, id); err != nil {
		return nil, err
	}
	if d.Exceptions, err = r.loadExceptions(ctx, id); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *deviceRepoPG) loadRules(ctx context.Context, deviceID uuid.UUID) ([]WorkingHoursRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, device_id, weekday, rule_date, start_clock, end_clock
		FROM device_working_hours WHERE device_id = $1
		ORDER BY weekday NULLS LAST, rule_date NULLS LAST`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rules []WorkingHoursRule
	for rows.Next() {
		var wh WorkingHoursRule
		if err := rows.Scan(&wh.ID, &wh.DeviceID, &wh.Weekday, &wh.Date, &wh.Start, &wh.End); err != nil {
			return nil, err
		}
		rules = append(rules, wh)
	}
	return rules, rows.Err()
}

func (r *deviceRepoPG) loadExceptions(ctx context.Context, deviceID uuid.UUID) ([]Exception, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, device_id, exception_date, reason
		FROM device_exceptions WHERE device_id = $1 ORDER BY exception_date`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exceptions []Exception
	for rows.Next() {
		var ex Exception
		if err := rows.Scan(&ex.ID, &ex.DeviceID, &ex.Date, &ex.Reason); err != nil {
			return nil, err
		}
		exceptions = append(exceptions, ex)
	}
	return exceptions, rows.Err()
}

func (r *deviceRepoPG) Update(ctx context.Context, d *Device) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE devices SET name=$2, active=$3, updated_at=NOW() WHERE id = $1`,
			d.ID, d.Name, d.Active); err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM device_working_hours WHERE device_id = $1`, d.ID); err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM device_exceptions WHERE device_id = $1`, d.ID); err != nil {
			return err
		}
		return r.insertRules(ctx, d)
	})
}

func (r *deviceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM devices WHERE id = $1`, id)
	return err
}

func (r *deviceRepoPG) List(ctx context.Context, limit, offset int) ([]*Device, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM devices`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name, active, created_at, updated_at
		FROM devices ORDER BY name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.ID, &d.Name, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, d := range items {
		if d.WorkingHours, err = r.loadRules(ctx, d.ID); err != nil {
			return nil, 0, err
		}
		if d.Exceptions, err = r.loadExceptions(ctx, d.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

// =========== Examination Repository ===========

type examinationRepoPG struct{ pool *pgxpool.Pool }

func NewExaminationRepoPG(pool *pgxpool.Pool) ExaminationRepository {
	return &examinationRepoPG{pool: pool}
}

func (r *examinationRepoPG) conn(ctx context.Context) db.Querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const examCols = `id, name, duration_minutes, body_side_required, created_at, updated_at`

func (r *examinationRepoPG) scanExamination(row pgx.Row) (*Examination, error) {
	var e Examination
	err := row.Scan(&e.ID, &e.Name, &e.DurationMinutes, &e.BodySideRequired, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *examinationRepoPG) Create(ctx context.Context, e *Examination) error {
	e.ID = uuid.New()
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO examinations (id, name, duration_minutes, body_side_required)
			VALUES ($1,$2,$3,$4)`,
			e.ID, e.Name, e.DurationMinutes, e.BodySideRequired); err != nil {
			return err
		}
		return r.linkDevices(ctx, e)
	})
}

func (r *examinationRepoPG) linkDevices(ctx context.Context, e *Examination) error {
	for _, deviceID := range e.DeviceIDs {
		if _, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO examination_devices (examination_id, device_id) VALUES ($1,$2)`,
			e.ID, deviceID); err != nil {
			return err
		}
	}
	return nil
}

func (r *examinationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Examination, error) {
	e, err := r.scanExamination(r.conn(ctx).QueryRow(ctx, `SELECT `+examCols+` FROM examinations WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	if e.DeviceIDs, err = r.loadDeviceIDs(ctx, id); err != nil {
		return nil, err
	}
	return e, nil
}

func (r *examinationRepoPG) loadDeviceIDs(ctx context.Context, examID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT device_id FROM examination_devices WHERE examination_id = $1 ORDER BY device_id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *examinationRepoPG) Update(ctx context.Context, e *Examination) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `
			UPDATE examinations SET name=$2, duration_minutes=$3, body_side_required=$4, updated_at=NOW()
			WHERE id = $1`,
			e.ID, e.Name, e.DurationMinutes, e.BodySideRequired); err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx, `DELETE FROM examination_devices WHERE examination_id = $1`, e.ID); err != nil {
			return err
		}
		return r.linkDevices(ctx, e)
	})
}

func (r *examinationRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM examinations WHERE id = $1`, id)
	return err
}

func (r *examinationRepoPG) List(ctx context.Context, limit, offset int) ([]*Examination, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM examinations`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+examCols+` FROM examinations ORDER BY name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Examination
	for rows.Next() {
		e, err := r.scanExamination(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for _, e := range items {
		if e.DeviceIDs, err = r.loadDeviceIDs(ctx, e.ID); err != nil {
			return nil, 0, err
		}
	}
	return items, total, nil
}

func (r *examinationRepoPG) ListByDevice(ctx context.Context, deviceID uuid.UUID) ([]*Examination, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+examCols+` FROM examinations e
		JOIN examination_devices ed ON ed.examination_id = e.id
		WHERE ed.device_id = $1 ORDER BY e.name ASC`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Examination
	for rows.Next() {
		e, err := r.scanExamination(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, e := range items {
		if e.DeviceIDs, err = r.loadDeviceIDs(ctx, e.ID); err != nil {
			return nil, err
		}
	}
	return items, nil
}
