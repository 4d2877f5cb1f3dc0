package inventory

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

const itemCols = `id, name, generic_name, category, manufacturer, batch_number, quantity, unit,
	reorder_level, unit_price, expiry_date, location, supplier, status, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, i *Item) error {
	i.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_items (
			id, name, generic_name, category, manufacturer, batch_number, quantity, unit,
			reorder_level, unit_price, expiry_date, location, supplier, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		i.ID, i.Name, i.GenericName, i.Category, i.Manufacturer, i.BatchNumber, i.Quantity, i.Unit,
		i.ReorderLevel, i.UnitPrice, i.ExpiryDate, i.Location, i.Supplier, i.Status,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Item, error) {
	i, err := scanItem(r.conn(ctx).QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("inventory item", id.String())
	}
	return i, err
}

func (r *repoPG) Update(ctx context.Context, i *Item) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE inventory_items SET
			name=$2, generic_name=$3, category=$4, manufacturer=$5, batch_number=$6, quantity=$7, unit=$8,
			reorder_level=$9, unit_price=$10, expiry_date=$11, location=$12, supplier=$13, status=$14,
			updated_at=NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		i.ID, i.Name, i.GenericName, i.Category, i.Manufacturer, i.BatchNumber, i.Quantity, i.Unit,
		i.ReorderLevel, i.UnitPrice, i.ExpiryDate, i.Location, i.Supplier, i.Status,
	).Scan(&i.CreatedAt, &i.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("inventory item", i.ID.String())
	}
	return err
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("inventory item", id.String())
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Item, int, error) {
	where := goqu.Ex{}
	if f.Category != "" {
		where["category"] = f.Category
	}
	if f.Status != "" {
		where["status"] = f.Status
	}
	ds := dialect.From("inventory_items").Where(where)
	if f.Search != "" {
		pattern := "%" + db.EscapeLike(f.Search) + "%"
		ds = ds.Where(goqu.Or(goqu.C("name").ILike(pattern), goqu.C("generic_name").ILike(pattern)))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT(goqu.Star())).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build inventory count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query, args, err := ds.Select(goqu.L(itemCols)).
		Order(goqu.C("name").Asc()).
		Limit(uint(f.Limit)).Offset(uint(f.Offset)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build inventory list: %w", err)
	}
	items, err := r.query(ctx, query, args...)
	return items, total, err
}

func (r *repoPG) ListByNameAndCategory(ctx context.Context, name, category string) ([]*Item, error) {
	ds := dialect.From("inventory_items").
		Select(goqu.L(itemCols)).
		Where(goqu.C("name").ILike("%" + db.EscapeLike(name) + "%"))
	if category != "" {
		ds = ds.Where(goqu.C("category").Eq(category))
	}
	query, args, err := ds.Order(goqu.C("name").Asc(), goqu.C("created_at").Asc()).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build inventory search: %w", err)
	}
	return r.query(ctx, query, args...)
}

func (r *repoPG) ListByStatus(ctx context.Context, statuses ...string) ([]*Item, error) {
	query, args, err := dialect.From("inventory_items").
		Select(goqu.L(itemCols)).
		Where(goqu.C("status").In(statuses)).
		Order(goqu.C("quantity").Asc(), goqu.C("name").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build inventory status query: %w", err)
	}
	return r.query(ctx, query, args...)
}

func (r *repoPG) ListExpired(ctx context.Context, now time.Time) ([]*Item, error) {
	return r.query(ctx,
		`SELECT `+itemCols+` FROM inventory_items WHERE expiry_date IS NOT NULL AND expiry_date < $1 ORDER BY expiry_date`,
		now)
}

func (r *repoPG) RecordUsage(ctx context.Context, id uuid.UUID, qty int) (*Item, error) {
	i, err := scanItem(r.conn(ctx).QueryRow(ctx, `
		UPDATE inventory_items SET quantity = quantity - $2, updated_at = NOW()
		WHERE id = $1 AND quantity >= $2
		RETURNING `+itemCols, id, qty))
	if !errors.Is(err, pgx.ErrNoRows) {
		return i, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrInsufficientStock
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE inventory_items SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (r *repoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Item, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (*Item, error) {
	var i Item
	err := row.Scan(
		&i.ID, &i.Name, &i.GenericName, &i.Category, &i.Manufacturer, &i.BatchNumber, &i.Quantity, &i.Unit,
		&i.ReorderLevel, &i.UnitPrice, &i.ExpiryDate, &i.Location, &i.Supplier, &i.Status, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}
