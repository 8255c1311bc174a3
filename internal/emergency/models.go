package emergency

import (
	"slices"
	"time"

	"backend-mchanga/internal/shared/geo"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	// TopicAll subscribes a client to every alert under the scoped fan-out.
	TopicAll = "all"
)

const (
	StatusReported   = "reported"
	StatusInProgress = "in-progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

var (
	Severities     = []string{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	Statuses       = []string{StatusReported, StatusInProgress, StatusResolved, StatusClosed}
	EmergencyTypes = []string{"breakdown", "accident", "theft", "medical", "other"}

	activeStatuses = []string{StatusReported, StatusInProgress}
)

type Location struct {
	geo.Point
	Address string `json:"address,omitempty"`
}

// Emergency is the persisted record.
type Emergency struct {
	ID            string     `json:"id"`
	VehicleID     string     `json:"vehicleId"`
	TripID        string     `json:"tripId,omitempty"`
	EmergencyType string     `json:"emergencyType"`
	Severity      string     `json:"severity"`
	Description   string     `json:"description"`
	Status        string     `json:"status"`
	Location      Location   `json:"location"`
	ResolvedAt    *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// Alert is the in-memory mirror pushed to subscribers.
type Alert struct {
	ID            string    `json:"id"`
	VehicleID     string    `json:"vehicleId"`
	EmergencyType string    `json:"emergencyType"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	Location      Location  `json:"location"`
}

func alertOf(e Emergency) Alert {
	return Alert{
		ID:            e.ID,
		VehicleID:     e.VehicleID,
		EmergencyType: e.EmergencyType,
		Severity:      e.Severity,
		Description:   e.Description,
		Status:        e.Status,
		CreatedAt:     e.CreatedAt,
		Location:      e.Location,
	}
}

type Stats struct {
	Total          int     `json:"total"`
	Critical       int     `json:"critical"`
	Active         int     `json:"active"`
	Resolved       int     `json:"resolved"`
	ResolutionRate float64 `json:"resolutionRate"`
}

// Filter narrows Query and Count. Empty fields match everything.
type Filter struct {
	Severity  string
	Statuses  []string
	VehicleID string
}

func validSeverity(s string) bool { return slices.Contains(Severities, s) }

func validStatus(s string) bool { return slices.Contains(Statuses, s) }
