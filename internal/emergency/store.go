package emergency

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
	id, vehicle_id, COALESCE(trip_id, ''), emergency_type, severity, description, status,
	COALESCE(latitude, 0), COALESCE(longitude, 0), address, resolved_at, created_at, updated_at`

type PgStore struct {
	db db.Querier
}

func NewStore(db db.Querier) *PgStore {
	return &PgStore{db: db}
}

func (s *PgStore) Insert(ctx context.Context, e Emergency) (Emergency, error) {
	e.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO emergencies (id, vehicle_id, trip_id, emergency_type, severity, description, status, latitude, longitude, address)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at
	`, e.ID, e.VehicleID, e.TripID, e.EmergencyType, e.Severity, e.Description, e.Status,
		e.Location.Latitude, e.Location.Longitude, e.Location.Address)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		if db.IsForeignKeyViolation(err) {
			return Emergency{}, apperr.NotFound("vehicle", e.VehicleID)
		}
		return Emergency{}, apperr.Store("insert emergency", err)
	}
	return e, nil
}

func (s *PgStore) FindByID(ctx context.Context, id string) (Emergency, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM emergencies WHERE id=$1`, id)
	e, err := scanEmergency(row)
	if err != nil {
		return Emergency{}, translate("find emergency", id, err)
	}
	return e, nil
}

// UpdateStatus writes the status and, when given, the resolution time.
func (s *PgStore) UpdateStatus(ctx context.Context, id, status string, resolvedAt *time.Time) (Emergency, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE emergencies
		SET status=$2, resolved_at=COALESCE($3, resolved_at), updated_at=NOW()
		WHERE id=$1
		RETURNING `+selectColumns, id, status, resolvedAt)
	e, err := scanEmergency(row)
	if err != nil {
		return Emergency{}, translate("update emergency status", id, err)
	}
	return e, nil
}

func (s *PgStore) Query(ctx context.Context, f Filter) ([]Emergency, error) {
	where, args := f.clause()
	rows, err := s.db.Query(ctx, `SELECT `+selectColumns+` FROM emergencies`+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, apperr.Store("query emergencies", err)
	}
	defer rows.Close()

	out := []Emergency{}
	for rows.Next() {
		e, err := scanEmergency(rows)
		if err != nil {
			return nil, apperr.Store("query emergencies", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("query emergencies", err)
	}
	return out, nil
}

func (s *PgStore) Count(ctx context.Context, f Filter) (int, error) {
	where, args := f.clause()
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM emergencies`+where, args...).Scan(&n); err != nil {
		return 0, apperr.Store("count emergencies", err)
	}
	return n, nil
}

func (f Filter) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Severity != "" {
		args = append(args, f.Severity)
		conds = append(conds, fmt.Sprintf("severity=$%d", len(args)))
	}
	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.VehicleID != "" {
		args = append(args, f.VehicleID)
		conds = append(conds, fmt.Sprintf("vehicle_id=$%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanEmergency(row pgx.Row) (Emergency, error) {
	var e Emergency
	err := row.Scan(&e.ID, &e.VehicleID, &e.TripID, &e.EmergencyType, &e.Severity, &e.Description, &e.Status,
		&e.Location.Latitude, &e.Location.Longitude, &e.Location.Address, &e.ResolvedAt, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func translate(op, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("emergency", id)
	}
	return apperr.Store(op, err)
}
