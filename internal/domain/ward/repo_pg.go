package ward

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

const wardCols = `id, ward_number, ward_type, floor, building, specialization, total_beds, occupied_beds,
	available_beds, gender_preference, facilities, status, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	w.normalize()
	w.Recount()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO wards (
			id, ward_number, ward_type, floor, building, specialization, total_beds, occupied_beds,
			available_beds, gender_preference, facilities, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at`,
		w.ID, w.WardNumber, w.Type, w.Floor, w.Building, w.Specialization, w.TotalBeds, w.OccupiedBeds,
		w.AvailableBeds, w.GenderPreference, w.Facilities, w.Status,
	).Scan(&w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ward create: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	w, err := scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardCols+` FROM wards WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ward", id.String())
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadOccupants(ctx, []*Ward{w}); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *repoPG) Update(ctx context.Context, w *Ward) error {
	w.normalize()
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE wards SET
			ward_number=$2, ward_type=$3, floor=$4, building=$5, specialization=$6, total_beds=$7,
			available_beds=$7 - occupied_beds, gender_preference=$8, facilities=$9, status=$10,
			updated_at=NOW()
		WHERE id = $1 AND occupied_beds <= $7
		RETURNING occupied_beds, available_beds, created_at, updated_at`,
		w.ID, w.WardNumber, w.Type, w.Floor, w.Building, w.Specialization, w.TotalBeds,
		w.GenderPreference, w.Facilities, w.Status,
	).Scan(&w.OccupiedBeds, &w.AvailableBeds, &w.CreatedAt, &w.UpdatedAt)
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, err := r.GetByID(ctx, w.ID); err != nil {
		return err
	}
	return apperr.Invalidf("total beds cannot be fewer than occupied beds")
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM wards WHERE id = $1 AND occupied_beds = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return apperr.Conflict("cannot delete a ward with patients")
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Ward, error) {
	where := goqu.Ex{}
	if f.Type != "" {
		where["ward_type"] = f.Type
	}
	if f.Status != "" {
		where["status"] = f.Status
	}
	if f.Floor != nil {
		where["floor"] = *f.Floor
	}
	return r.list(ctx, dialect.From("wards").Where(where))
}

func (r *repoPG) ListActive(ctx context.Context) ([]*Ward, error) {
	return r.list(ctx, dialect.From("wards").Where(goqu.C("status").Eq(StatusActive)))
}

func (r *repoPG) ListActiveWithBeds(ctx context.Context) ([]*Ward, error) {
	return r.list(ctx, dialect.From("wards").Where(
		goqu.C("status").Eq(StatusActive),
		goqu.C("available_beds").Gt(0),
	))
}

func (r *repoPG) list(ctx context.Context, ds *goqu.SelectDataset) ([]*Ward, error) {
	query, args, err := ds.Select(goqu.L(wardCols)).
		Order(goqu.C("ward_number").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build ward list: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, err
		}
		wards = append(wards, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadOccupants(ctx, wards); err != nil {
		return nil, err
	}
	return wards, nil
}

// AdmitOccupant claims the bed with a conditional increment so two
// admissions can never push a ward past its capacity.
func (r *repoPG) AdmitOccupant(ctx context.Context, wardID uuid.UUID, o *Occupant) error {
	var occupied int
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE wards SET occupied_beds = occupied_beds + 1, available_beds = available_beds - 1, updated_at = NOW()
		WHERE id = $1 AND status = 'active' AND available_beds > 0
		RETURNING occupied_beds`, wardID).Scan(&occupied)
	if errors.Is(err, pgx.ErrNoRows) {
		if _, err := r.GetByID(ctx, wardID); err != nil {
			return err
		}
		return ErrWardFull
	}
	if err != nil {
		return fmt.Errorf("claim bed: %w", err)
	}

	if o.BedLabel == "" {
		taken, err := r.bedLabels(ctx, wardID)
		if err != nil {
			return err
		}
		o.BedLabel = NextBedLabel(occupied, taken)
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO ward_occupants (ward_id, patient_id, bed_label, admission_date, expected_discharge_date)
		VALUES ($1, $2, $3, $4, $5)`,
		wardID, o.PatientID, o.BedLabel, o.AdmissionDate, o.ExpectedDischargeDate)
	if err != nil {
		return fmt.Errorf("insert ward occupant: %w", err)
	}
	return nil
}

// bedLabels runs after the claim, so the ward row lock keeps concurrent
// admissions from picking the same label.
func (r *repoPG) bedLabels(ctx context.Context, wardID uuid.UUID) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT bed_label FROM ward_occupants WHERE ward_id = $1`, wardID)
	if err != nil {
		return nil, fmt.Errorf("list bed labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

func (r *repoPG) RemoveOccupant(ctx context.Context, wardID, patientID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		WITH removed AS (
			DELETE FROM ward_occupants WHERE ward_id = $1 AND patient_id = $2 RETURNING ward_id
		)
		UPDATE wards SET occupied_beds = occupied_beds - 1, available_beds = available_beds + 1, updated_at = NOW()
		WHERE id IN (SELECT ward_id FROM removed)`, wardID, patientID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ward occupant", patientID.String())
	}
	return nil
}

func (r *repoPG) loadOccupants(ctx context.Context, wards []*Ward) error {
	if len(wards) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(wards))
	byID := make(map[uuid.UUID]*Ward, len(wards))
	for i, w := range wards {
		ids[i] = w.ID
		byID[w.ID] = w
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT ward_id, patient_id, bed_label, admission_date, expected_discharge_date
		FROM ward_occupants WHERE ward_id = ANY($1)
		ORDER BY admission_date, bed_label`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var wardID uuid.UUID
		var o Occupant
		if err := rows.Scan(&wardID, &o.PatientID, &o.BedLabel, &o.AdmissionDate, &o.ExpectedDischargeDate); err != nil {
			return err
		}
		if w, ok := byID[wardID]; ok {
			w.Occupants = append(w.Occupants, o)
		}
	}
	return rows.Err()
}

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	err := row.Scan(
		&w.ID, &w.WardNumber, &w.Type, &w.Floor, &w.Building, &w.Specialization, &w.TotalBeds, &w.OccupiedBeds,
		&w.AvailableBeds, &w.GenderPreference, &w.Facilities, &w.Status, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.normalize()
	return &w, nil
}
