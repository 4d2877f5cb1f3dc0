package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/db"
)

var dialect = goqu.Dialect("postgres")

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const apptCols = `id, patient_id, doctor_id, appointment_date, start_time, end_time, type, status,
	reason, symptoms, notes, predicted_duration, priority, no_show_probability, cancel_reason,
	completed_at, created_at, updated_at`

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	if a.Symptoms == nil {
		a.Symptoms = []string{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, appointment_date, start_time, end_time, type, status,
			reason, symptoms, notes, predicted_duration, priority, no_show_probability
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.AppointmentDate, a.TimeSlot.StartTime, a.TimeSlot.EndTime, a.Type, a.Status,
		a.Reason, a.Symptoms, a.Notes, a.PredictedDuration, a.Priority, a.NoShowProbability,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("appointment", id.String())
	}
	return a, err
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET
			start_time=$2, end_time=$3, status=$4, reason=$5, notes=$6, cancel_reason=$7,
			completed_at=$8, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.TimeSlot.StartTime, a.TimeSlot.EndTime, a.Status, a.Reason, a.Notes, a.CancelReason, a.CompletedAt,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("appointment", a.ID.String())
	}
	return err
}

func (r *appointmentRepoPG) ListAppointments(ctx context.Context, f Filter) ([]*Appointment, int, error) {
	ds := dialect.From("appointments")
	if f.PatientID != nil {
		ds = ds.Where(goqu.C("patient_id").Eq(*f.PatientID))
	}
	if f.DoctorID != nil {
		ds = ds.Where(goqu.C("doctor_id").Eq(*f.DoctorID))
	}
	if len(f.Statuses) > 0 {
		ds = ds.Where(goqu.C("status").In(f.Statuses))
	}
	if f.Date != nil {
		ds = ds.Where(goqu.C("appointment_date").Eq(*f.Date))
	}
	if f.From != nil {
		ds = ds.Where(goqu.C("appointment_date").Gte(*f.From))
	}
	if f.To != nil {
		ds = ds.Where(goqu.C("appointment_date").Lte(*f.To))
	}
	if f.CreatedBefore != nil {
		ds = ds.Where(goqu.C("created_at").Lt(*f.CreatedBefore))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if f.NewestFirst {
		ds = ds.Order(goqu.C("appointment_date").Desc(), goqu.C("start_time").Desc())
	} else {
		ds = ds.Order(goqu.C("appointment_date").Asc(), goqu.C("start_time").Asc())
	}
	if f.Limit > 0 {
		ds = ds.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	query, args, err := ds.Select(goqu.L(apptCols)).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build appointment list: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *appointmentRepoPG) CountByStatus(ctx context.Context, doctorID uuid.UUID) (map[string]int, error) {
	query, args, err := dialect.From("appointments").
		Select(goqu.C("status"), goqu.COUNT(goqu.Star())).
		Where(goqu.C("doctor_id").Eq(doctorID)).
		GroupBy(goqu.C("status")).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build status count: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.AppointmentDate, &a.TimeSlot.StartTime, &a.TimeSlot.EndTime, &a.Type, &a.Status,
		&a.Reason, &a.Symptoms, &a.Notes, &a.PredictedDuration, &a.Priority, &a.NoShowProbability, &a.CancelReason,
		&a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
