package vehicle

import (
	"time"

	"backend-mchanga/internal/shared/geo"
)

type Vehicle struct {
	ID                 string     `json:"id"`
	RegistrationNumber string     `json:"registrationNumber"`
	Make               string     `json:"make"`
	Model              string     `json:"model"`
	Year               int        `json:"year"`
	LicensePlate       string     `json:"licensePlate"`
	Status             string     `json:"status"`
	CurrentLocation    *geo.Point `json:"currentLocation,omitempty"`
	LocationUpdatedAt  *time.Time `json:"locationUpdatedAt,omitempty"`
	TotalDistanceKm    float64    `json:"totalDistanceKm"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

// LastKnownLocation falls back to the origin for vehicles that never reported.
func (v Vehicle) LastKnownLocation() geo.Point {
	if v.CurrentLocation == nil {
		return geo.Point{}
	}
	return *v.CurrentLocation
}
