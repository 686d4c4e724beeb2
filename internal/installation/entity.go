// AngelaMos | 2026
// entity.go

package installation

import (
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusDeleted  = "deleted"
)

const (
	UsageAquaculture = "aquaculture"
	UsageTreatment   = "treatment"
	UsageOther       = "other"
)

type Installation struct {
	ID          string    `db:"id"`
	CreatorID   string    `db:"creator_id"`
	BranchID    *string   `db:"branch_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Status      string    `db:"status"`
	Usage       string    `db:"usage"`
	InstalledAt time.Time `db:"installed_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
