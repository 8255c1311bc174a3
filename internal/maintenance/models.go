package maintenance

import (
	"slices"
	"time"
)

const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var ServiceTypes = []string{"oil_change", "tire_replacement", "maintenance", "repair", "inspection"}

// Record is a persisted service appointment.
type Record struct {
	ID          string     `json:"id"`
	VehicleID   string     `json:"vehicleId"`
	ServiceType string     `json:"serviceType"`
	Description string     `json:"description,omitempty"`
	Cost        float64    `json:"cost"`
	ServiceDate time.Time  `json:"serviceDate"`
	Mileage     float64    `json:"mileage,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	Status      string     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Stats struct {
	Total          int     `json:"total"`
	Scheduled      int     `json:"scheduled"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"inProgress"`
	TotalCost      float64 `json:"totalCost"`
	CompletionRate float64 `json:"completionRate"`
}

type Reminder struct {
	VehicleID     string    `json:"vehicleId"`
	ServiceID     string    `json:"serviceId"`
	ServiceType   string    `json:"serviceType"`
	ScheduledDate time.Time `json:"scheduledDate"`
	Message       string    `json:"message"`
}

// Filter narrows Query and Count. Zero fields match everything; From and
// To are inclusive, Before is exclusive.
type Filter struct {
	Status    string
	VehicleID string
	From      time.Time
	To        time.Time
	Before    time.Time
}

func validServiceType(t string) bool { return slices.Contains(ServiceTypes, t) }
