// AngelaMos | 2026
// entity.go

package task

import (
	"time"
)

const (
	KindManual    = "manual"
	KindScheduled = "scheduled"
	KindThreshold = "threshold"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Task is a scheduled aerator job. It inherits access from its installation.
type Task struct {
	ID             string     `db:"id"              json:"id"`
	InstallationID string     `db:"installation_id" json:"installation_id"`
	Name           string     `db:"name"            json:"name"`
	Kind           string     `db:"kind"            json:"kind"`
	WindowStart    *time.Time `db:"window_start"    json:"window_start,omitempty"`
	WindowEnd      *time.Time `db:"window_end"      json:"window_end,omitempty"`
	ThresholdMin   *float64   `db:"threshold_min"   json:"threshold_min,omitempty"`
	ThresholdMax   *float64   `db:"threshold_max"   json:"threshold_max,omitempty"`
	Action         string     `db:"action"          json:"action"`
	Enabled        bool       `db:"enabled"         json:"enabled"`
	Status         string     `db:"status"          json:"status"`
	CompletedAt    *time.Time `db:"completed_at"    json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at"      json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at"      json:"updated_at"`
}
