package tracking

import (
	"time"

	"backend-mchanga/internal/shared/geo"
)

const (
	StatusTracking = "tracking"
	StatusStopped  = "stopped"
)

// Session is the live tracking state of one vehicle. It is overwritten on
// every start and kept after stop.
type Session struct {
	VehicleID       string     `json:"vehicleId"`
	Status          string     `json:"status"`
	StartTime       time.Time  `json:"startTime"`
	LastUpdate      time.Time  `json:"lastUpdate"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	CurrentLocation geo.Point  `json:"currentLocation"`
	Distance        float64    `json:"distance"`
	Speed           float64    `json:"speed"`
}

type Stats struct {
	VehicleID       string  `json:"vehicleId"`
	Distance        float64 `json:"distance"`
	DurationSeconds int64   `json:"duration"`
	AverageSpeed    float64 `json:"averageSpeed"`
	CurrentSpeed    float64 `json:"currentSpeed"`
	Status          string  `json:"status"`
}

// LiveState is the short-lived per-vehicle snapshot mirrored outside the
// process after each location report.
type LiveState struct {
	VehicleID string
	Location  geo.Point
	Status    string
	Distance  float64
	UpdatedAt time.Time
}
