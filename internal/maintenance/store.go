package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backend-mchanga/internal/db"
	"backend-mchanga/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const selectColumns = `
	id, vehicle_id, service_type, description, cost, service_date, mileage, provider,
	status, completed_at, created_at, updated_at`

type PgStore struct {
	db db.Querier
}

func NewStore(db db.Querier) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Insert(ctx context.Context, r Record) (Record, error) {
	r.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO services (id, vehicle_id, service_type, description, cost, service_date, mileage, provider, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at
	`, r.ID, r.VehicleID, r.ServiceType, r.Description, r.Cost, r.ServiceDate, r.Mileage, r.Provider, r.Status)
	if err := row.Scan(&r.CreatedAt, &r.UpdatedAt); err != nil {
		if db.IsForeignKeyViolation(err) {
			return Record{}, apperr.NotFound("vehicle", r.VehicleID)
		}
		return Record{}, apperr.Store("insert service", err)
	}
	return r, nil
}

func (s *PgStore) FindByID(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM services WHERE id=$1`, id)
	r, err := scanRecord(row)
	if err != nil {
		return Record{}, translate("find service", id, err)
	}
	return r, nil
}

func (s *PgStore) Complete(ctx context.Context, id string, at time.Time) (Record, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE services SET status=$2, completed_at=$3, updated_at=$3
		WHERE id=$1
		RETURNING `+selectColumns, id, StatusCompleted, at)
	r, err := scanRecord(row)
	if err != nil {
		return Record{}, translate("complete service", id, err)
	}
	return r, nil
}

func (s *PgStore) Reschedule(ctx context.Context, id string, date time.Time) (Record, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE services SET service_date=$2, updated_at=NOW()
		WHERE id=$1
		RETURNING `+selectColumns, id, date)
	r, err := scanRecord(row)
	if err != nil {
		return Record{}, translate("reschedule service", id, err)
	}
	return r, nil
}

// Query returns matching records, latest service date first.
func (s *PgStore) Query(ctx context.Context, f Filter) ([]Record, error) {
	where, args := f.clause()
	rows, err := s.db.Query(ctx, `SELECT `+selectColumns+` FROM services`+where+` ORDER BY service_date DESC`, args...)
	if err != nil {
		return nil, apperr.Store("query services", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, apperr.Store("query services", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("query services", err)
	}
	return out, nil
}

func (s *PgStore) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.clause()
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM services`+where, args...).Scan(&n); err != nil {
		return 0, apperr.Store("count services", err)
	}
	return n, nil
}

// CompletedCost sums the cost of completed services.
func (s *PgStore) CompletedCost(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(cost), 0) FROM services WHERE status=$1`, StatusCompleted).Scan(&total)
	if err != nil {
		return 0, apperr.Store("sum service cost", err)
	}
	return total, nil
}

func (f Filter) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status=$%d", f.Status)
	}
	if f.VehicleID != "" {
		add("vehicle_id=$%d", f.VehicleID)
	}
	if !f.From.IsZero() {
		add("service_date >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("service_date <= $%d", f.To)
	}
	if !f.Before.IsZero() {
		add("service_date < $%d", f.Before)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.VehicleID, &r.ServiceType, &r.Description, &r.Cost, &r.ServiceDate, &r.Mileage,
		&r.Provider, &r.Status, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func translate(op, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("service", id)
	}
	return apperr.Store(op, err)
}
