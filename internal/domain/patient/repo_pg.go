package patient

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

const patientCols = `id, first_name, last_name, date_of_birth, gender, blood_group, phone, email, address,
	allergies, current_medications, medical_history, assigned_ward_id, device_id,
	created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.normalize()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (
			id, first_name, last_name, date_of_birth, gender, blood_group, phone, email, address,
			allergies, current_medications, medical_history, assigned_ward_id, device_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14, ''))
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.BloodGroup, p.Phone, p.Email, p.Address,
		p.Allergies, p.CurrentMedications, p.MedicalHistory, p.AssignedWardID, p.DeviceID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", id.String())
	}
	return p, err
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Patient, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+patientCols+` FROM patients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (r *repoPG) GetByDeviceID(ctx context.Context, deviceID string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE device_id = $1`, deviceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient", deviceID)
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	p.normalize()
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patients SET
			first_name=$2, last_name=$3, date_of_birth=$4, gender=$5, blood_group=$6, phone=$7, email=$8, address=$9,
			allergies=$10, current_medications=$11, medical_history=$12, device_id=NULLIF($13, ''),
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.BloodGroup, p.Phone, p.Email, p.Address,
		p.Allergies, p.CurrentMedications, p.MedicalHistory, p.DeviceID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("patient", p.ID.String())
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, search string, limit, offset int) ([]*Patient, int, error) {
	where := ""
	args := []interface{}{}
	if search != "" {
		args = append(args, "%"+db.EscapeLike(search)+"%")
		where = fmt.Sprintf(` WHERE (first_name || ' ' || last_name) ILIKE $%d OR phone ILIKE $%d`, len(args), len(args))
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+patientCols+` FROM patients`+where+` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *repoPG) SetAssignedWard(ctx context.Context, id uuid.UUID, wardID *uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET assigned_ward_id = $2, updated_at = NOW() WHERE id = $1`, id, wardID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id.String())
	}
	return nil
}

func (r *repoPG) SetMedicalHistory(ctx context.Context, id uuid.UUID, history []HistoryEntry) error {
	if history == nil {
		history = []HistoryEntry{}
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET medical_history = $2, updated_at = NOW() WHERE id = $1`, id, history)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id.String())
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var deviceID *string
	err := row.Scan(
		&p.ID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.BloodGroup, &p.Phone, &p.Email, &p.Address,
		&p.Allergies, &p.CurrentMedications, &p.MedicalHistory, &p.AssignedWardID, &deviceID,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deviceID != nil {
		p.DeviceID = *deviceID
	}
	p.normalize()
	return &p, nil
}
