// AngelaMos | 2026
// dto.go

package task

import (
	"time"
)

type CreateTaskRequest struct {
	Name         string     `json:"name"          validate:"required,max=150"`
	Kind         string     `json:"kind"          validate:"omitempty,oneof=manual scheduled threshold"`
	WindowStart  *time.Time `json:"window_start"`
	WindowEnd    *time.Time `json:"window_end"`
	ThresholdMin *float64   `json:"threshold_min"`
	ThresholdMax *float64   `json:"threshold_max"`
	Action       string     `json:"action"        validate:"required,max=100"`
	Enabled      *bool      `json:"enabled"`
}

type UpdateTaskRequest struct {
	Name         *string    `json:"name,omitempty"          validate:"omitempty,max=150"`
	Kind         *string    `json:"kind,omitempty"          validate:"omitempty,oneof=manual scheduled threshold"`
	WindowStart  *time.Time `json:"window_start,omitempty"`
	WindowEnd    *time.Time `json:"window_end,omitempty"`
	ThresholdMin *float64   `json:"threshold_min,omitempty"`
	ThresholdMax *float64   `json:"threshold_max,omitempty"`
	Action       *string    `json:"action,omitempty"        validate:"omitempty,max=100"`
	Enabled      *bool      `json:"enabled,omitempty"`
	Status       *string    `json:"status,omitempty"        validate:"omitempty,oneof=pending completed cancelled"`
}
