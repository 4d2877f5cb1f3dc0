package vitals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const readingCols = `id, patient_id, device_id, reading_type, value, systolic, diastolic, unit, recorded_at,
	normal_min, normal_max, is_abnormal, acknowledged, acknowledged_at, notes, created_at`

func (r *repoPG) Create(ctx context.Context, v *Reading) error {
	v.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO vital_readings (
			id, patient_id, device_id, reading_type, value, systolic, diastolic, unit, recorded_at,
			normal_min, normal_max, is_abnormal, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		v.ID, v.PatientID, v.DeviceID, v.Type, v.Value, v.Systolic, v.Diastolic, v.Unit, v.Timestamp,
		v.NormalRange.Min, v.NormalRange.Max, v.IsAbnormal, v.Notes,
	).Scan(&v.CreatedAt)
	if err != nil {
		return fmt.Errorf("vital reading create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Reading, error) {
	v, err := scanReading(r.conn(ctx).QueryRow(ctx,
		`SELECT `+readingCols+` FROM vital_readings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("vital reading", id.String())
	}
	return v, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, readingType string, since time.Time) ([]*Reading, error) {
	return r.list(ctx, Filter{PatientID: &patientID, Type: readingType, Since: &since})
}

func (r *repoPG) Latest(ctx context.Context, patientID uuid.UUID, readingType string) (*Reading, error) {
	items, err := r.list(ctx, Filter{PatientID: &patientID, Type: readingType, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.NotFound("vital reading", patientID.String())
	}
	return items[0], nil
}

func (r *repoPG) ListAbnormal(ctx context.Context, f Filter) ([]*Reading, error) {
	f.Abnormal = true
	return r.list(ctx, f)
}

func (r *repoPG) Acknowledge(ctx context.Context, id uuid.UUID, notes string, at time.Time) (*Reading, error) {
	v, err := scanReading(r.conn(ctx).QueryRow(ctx, `
		UPDATE vital_readings SET acknowledged = TRUE, acknowledged_at = $2, notes = $3
		WHERE id = $1
		RETURNING `+readingCols, id, at, notes))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("alert", id.String())
	}
	return v, err
}

const deviceQuery = `
	SELECT d.device_id, p.id, MAX(v.recorded_at), COUNT(v.id)
	FROM (
		SELECT device_id FROM patients WHERE device_id IS NOT NULL
		UNION
		SELECT device_id FROM vital_readings
	) d
	LEFT JOIN patients p ON p.device_id = d.device_id
	LEFT JOIN vital_readings v ON v.device_id = d.device_id`

func (r *repoPG) ListDevices(ctx context.Context) ([]*Device, error) {
	rows, err := r.conn(ctx).Query(ctx, deviceQuery+`
		GROUP BY d.device_id, p.id
		ORDER BY d.device_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (r *repoPG) GetDevice(ctx context.Context, deviceID string) (*Device, error) {
	d, err := scanDevice(r.conn(ctx).QueryRow(ctx, deviceQuery+`
		WHERE d.device_id = $1
		GROUP BY d.device_id, p.id`, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("device", deviceID)
	}
	return d, err
}

func scanDevice(row pgx.Row) (*Device, error) {
	var d Device
	if err := row.Scan(&d.DeviceID, &d.PatientID, &d.LastReadingAt, &d.ReadingCount); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repoPG) list(ctx context.Context, f Filter) ([]*Reading, error) {
	where := goqu.Ex{}
	if f.PatientID != nil {
		where["patient_id"] = *f.PatientID
	}
	if f.Type != "" {
		where["reading_type"] = f.Type
	}
	if f.Abnormal {
		where["is_abnormal"] = true
	}
	ds := dialect.From("vital_readings").Select(goqu.L(readingCols)).Where(where)
	if f.Since != nil {
		ds = ds.Where(goqu.C("recorded_at").Gte(*f.Since))
	}
	ds = ds.Order(goqu.C("recorded_at").Desc())
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build vital reading query: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Reading
	for rows.Next() {
		v, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}
	return items, rows.Err()
}

func scanReading(row pgx.Row) (*Reading, error) {
	var v Reading
	var notes *string
	err := row.Scan(
		&v.ID, &v.PatientID, &v.DeviceID, &v.Type, &v.Value, &v.Systolic, &v.Diastolic, &v.Unit, &v.Timestamp,
		&v.NormalRange.Min, &v.NormalRange.Max, &v.IsAbnormal, &v.Acknowledged, &v.AcknowledgedAt, &notes, &v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if notes != nil {
		v.Notes = *notes
	}
	return &v, nil
}
