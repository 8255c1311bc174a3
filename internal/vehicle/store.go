package vehicle

import (
	"context"
	"errors"
	"time"

	"backend-mchanga/internal/db"
	"backend-mchanga/internal/shared/apperr"
	"backend-mchanga/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const StatusActive = "active"

const selectColumns = `
	id, registration_number, make, model, year, license_plate, status,
	latitude IS NOT NULL, COALESCE(latitude, 0), COALESCE(longitude, 0),
	COALESCE(location_updated_at, updated_at), total_distance_km, created_at, updated_at`

type Store struct {
	db db.Querier
}

func NewStore(db db.Querier) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, v Vehicle) (Vehicle, error) {
	if v.RegistrationNumber == "" || v.LicensePlate == "" {
		return Vehicle{}, apperr.Invalid("registrationNumber and licensePlate required")
	}
	v.ID = uuid.NewString()
	if v.Status == "" {
		v.Status = StatusActive
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO vehicles (id, registration_number, make, model, year, license_plate, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at, updated_at
	`, v.ID, v.RegistrationNumber, v.Make, v.Model, v.Year, v.LicensePlate, v.Status)
	if err := row.Scan(&v.CreatedAt, &v.UpdatedAt); err != nil {
		return Vehicle{}, apperr.Store("insert vehicle", err)
	}
	return v, nil
}

func (s *Store) FindByID(ctx context.Context, id string) (Vehicle, error) {
	row := s.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM vehicles WHERE id=$1`, id)
	v, err := scanVehicle(row)
	if err != nil {
		return Vehicle{}, translate("find vehicle", id, err)
	}
	return v, nil
}

func (s *Store) List(ctx context.Context) ([]Vehicle, error) {
	rows, err := s.db.Query(ctx, `SELECT `+selectColumns+` FROM vehicles ORDER BY created_at DESC`)
	if err != nil {
		return nil, apperr.Store("list vehicles", err)
	}
	defer rows.Close()

	vehicles := []Vehicle{}
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, apperr.Store("list vehicles", err)
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Store("list vehicles", err)
	}
	return vehicles, nil
}

// UpdateLocation stores the last reported position and returns the updated
// record. distanceKm is added to the vehicle's lifetime odometer.
func (s *Store) UpdateLocation(ctx context.Context, id string, p geo.Point, distanceKm float64, at time.Time) (Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE vehicles
		SET latitude=$2, longitude=$3, location_updated_at=$4,
		    total_distance_km = total_distance_km + $5, updated_at=$4
		WHERE id=$1
		RETURNING `+selectColumns, id, p.Latitude, p.Longitude, at, distanceKm)
	v, err := scanVehicle(row)
	if err != nil {
		return Vehicle{}, translate("update vehicle location", id, err)
	}
	return v, nil
}

func scanVehicle(row pgx.Row) (Vehicle, error) {
	var (
		v         Vehicle
		located   bool
		lat, lng  float64
		locatedAt time.Time
	)
	err := row.Scan(&v.ID, &v.RegistrationNumber, &v.Make, &v.Model, &v.Year, &v.LicensePlate, &v.Status,
		&located, &lat, &lng, &locatedAt, &v.TotalDistanceKm, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return Vehicle{}, err
	}
	if located {
		v.CurrentLocation = &geo.Point{Latitude: lat, Longitude: lng}
		v.LocationUpdatedAt = &locatedAt
	}
	return v, nil
}

func translate(op, id string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("vehicle", id)
	}
	return apperr.Store(op, err)
}
