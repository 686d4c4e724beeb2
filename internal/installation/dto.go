// AngelaMos | 2026
// dto.go

package installation

import (
	"time"
)

const dateLayout = "2006-01-02"

type CreateInstallationRequest struct {
	Name        string  `json:"name"         validate:"required,max=150"`
	Description string  `json:"description"  validate:"max=2000"`
	BranchID    *string `json:"branch_id"    validate:"omitempty,uuid"`
	Usage       string  `json:"usage"        validate:"omitempty,oneof=aquaculture treatment other"`
	InstalledAt *string `json:"installed_at" validate:"omitempty,datetime=2006-01-02"`
}

type UpdateInstallationRequest struct {
	Name        *string `json:"name,omitempty"        validate:"omitempty,max=150"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Usage       *string `json:"usage,omitempty"       validate:"omitempty,oneof=aquaculture treatment other"`
	Status      *string `json:"status,omitempty"      validate:"omitempty,oneof=active inactive"`
}

type InstallationResponse struct {
	ID          string    `json:"id"`
	CreatorID   string    `json:"creator_id"`
	BranchID    *string   `json:"branch_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Usage       string    `json:"usage"`
	InstalledAt string    `json:"installed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func ToInstallationResponse(i *Installation) InstallationResponse {
	return InstallationResponse{
		ID:          i.ID,
		CreatorID:   i.CreatorID,
		BranchID:    i.BranchID,
		Name:        i.Name,
		Description: i.Description,
		Status:      i.Status,
		Usage:       i.Usage,
		InstalledAt: i.InstalledAt.Format(dateLayout),
		CreatedAt:   i.CreatedAt,
		UpdatedAt:   i.UpdatedAt,
	}
}

func ToInstallationResponseList(items []Installation) []InstallationResponse {
	responses := make([]InstallationResponse, 0, len(items))
	for i := range items {
		responses = append(responses, ToInstallationResponse(&items[i]))
	}
	return responses
}
