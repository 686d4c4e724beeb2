// AngelaMos | 2026
// entity.go

package process

import (
	"time"
)

const (
	StatusActive   = "active"
	StatusFinished = "finished"
	StatusPaused   = "paused"
)

const dateLayout = "2006-01-02"

// Process is one production cycle of a species in an installation.
type Process struct {
	ID             string     `db:"id"`
	InstallationID string     `db:"installation_id"`
	SpeciesID      int        `db:"species_id"`
	SpeciesName    string     `db:"species_name"`
	StartedOn      time.Time  `db:"started_on"`
	FinishedOn     *time.Time `db:"finished_on"`
	Status         string     `db:"status"`
	Notes          string     `db:"notes"`
	CreatedAt      time.Time  `db:"created_at"`
}

type Species struct {
	ID   int    `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
}

type CreateProcessRequest struct {
	SpeciesID  int     `json:"species_id"  validate:"required,gt=0"`
	StartedOn  string  `json:"started_on"  validate:"required,datetime=2006-01-02"`
	FinishedOn *string `json:"finished_on" validate:"omitempty,datetime=2006-01-02"`
	Status     string  `json:"status"      validate:"omitempty,oneof=active finished paused"`
	Notes      string  `json:"notes"       validate:"max=2000"`
}

type ProcessResponse struct {
	ID             string    `json:"id"`
	InstallationID string    `json:"installation_id"`
	SpeciesID      int       `json:"species_id"`
	SpeciesName    string    `json:"species_name"`
	StartedOn      string    `json:"started_on"`
	FinishedOn     *string   `json:"finished_on,omitempty"`
	Status         string    `json:"status"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

func ToProcessResponse(p *Process) ProcessResponse {
	resp := ProcessResponse{
		ID:             p.ID,
		InstallationID: p.InstallationID,
		SpeciesID:      p.SpeciesID,
		SpeciesName:    p.SpeciesName,
		StartedOn:      p.StartedOn.Format(dateLayout),
		Status:         p.Status,
		Notes:          p.Notes,
		CreatedAt:      p.CreatedAt,
	}
	if p.FinishedOn != nil {
		finished := p.FinishedOn.Format(dateLayout)
		resp.FinishedOn = &finished
	}
	return resp
}

func ToProcessResponseList(items []Process) []ProcessResponse {
	out := make([]ProcessResponse, 0, len(items))
	for i := range items {
		out = append(out, ToProcessResponse(&items[i]))
	}
	return out
}
