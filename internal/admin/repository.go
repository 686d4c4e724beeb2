// AngelaMos | 2026
// repository.go

package admin

import (
	"context"
	"fmt"

	"github.com/aquasense/sonda-api/internal/core"
)

// Counts summarises the domain tables.
type Counts struct {
	Users                int `db:"users"                 json:"users"`
	ActiveUsers          int `db:"active_users"          json:"active_users"`
	Installations        int `db:"installations"         json:"installations"`
	DeletedInstallations int `db:"deleted_installations" json:"deleted_installations"`
	Grants               int `db:"grants"                json:"grants"`
	Sensors              int `db:"sensors"               json:"sensors"`
	PendingTasks         int `db:"pending_tasks"         json:"pending_tasks"`
	ActiveProcesses      int `db:"active_processes"      json:"active_processes"`
}

type StatsRepository interface {
	Counts(ctx context.Context) (*Counts, error)
}

type statsRepository struct {
	db core.DBTX
}

func NewStatsRepository(db core.DBTX) StatsRepository {
	return &statsRepository{db: db}
}

func (r *statsRepository) Counts(ctx context.Context) (*Counts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM users WHERE active) AS active_users,
			(SELECT COUNT(*) FROM installations WHERE status <> 'deleted') AS installations,
			(SELECT COUNT(*) FROM installations WHERE status = 'deleted') AS deleted_installations,
			(SELECT COUNT(*) FROM installation_grants) AS grants,
			(SELECT COUNT(*) FROM sensors) AS sensors,
			(SELECT COUNT(*) FROM tasks WHERE status = 'pending') AS pending_tasks,
			(SELECT COUNT(*) FROM processes WHERE status = 'active') AS active_processes`

	var counts Counts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("count domain rows: %w", core.StorageError(ctx, err))
	}

	return &counts, nil
}
