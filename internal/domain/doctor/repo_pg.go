package doctor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kanishkgandecha/medilink/internal/platform/apperr"
	"github.com/kanishkgandecha/medilink/internal/platform/db"
)

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

const doctorCols = `id, first_name, last_name, specialization, department, email, phone, license_number,
	active, availability, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	if d.Availability == nil {
		d.Availability = []DayAvailability{}
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, first_name, last_name, specialization, department, email, phone, license_number, active, availability)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.Department, d.Email, d.Phone, d.LicenseNumber,
		d.Active, d.Availability,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("doctor", id.String())
	}
	return d, err
}

func (r *repoPG) Update(ctx context.Context, d *Doctor) error {
	if d.Availability == nil {
		d.Availability = []DayAvailability{}
	}
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctors SET
			first_name=$2, last_name=$3, specialization=$4, department=$5, email=$6, phone=$7,
			license_number=$8, active=$9, availability=$10, updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.Department, d.Email, d.Phone,
		d.LicenseNumber, d.Active, d.Availability,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("doctor", d.ID.String())
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctors WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("doctor", id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, specialization string, limit, offset int) ([]*Doctor, int, error) {
	where := ""
	args := []interface{}{}
	if specialization != "" {
		args = append(args, specialization)
		where = fmt.Sprintf(` WHERE lower(specialization) = lower($%d)`, len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+doctorCols+` FROM doctors`+where+` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.FirstName, &d.LastName, &d.Specialization, &d.Department, &d.Email, &d.Phone, &d.LicenseNumber,
		&d.Active, &d.Availability, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
