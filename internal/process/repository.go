// AngelaMos | 2026
// repository.go

package process

import (
	"context"
	"fmt"

	"github.com/aquasense/sonda-api/internal/core"
)

type Repository interface {
	ListByInstallation(ctx context.Context, installationID string) ([]Process, error)
	Create(ctx context.Context, p *Process) error
	ListSpecies(ctx context.Context) ([]Species, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) ListByInstallation(
	ctx context.Context,
	installationID string,
) ([]Process, error) {
	query := `
		SELECT p.id, p.installation_id, p.species_id, s.name AS species_name,
		       p.started_on, p.finished_on, p.status, p.notes, p.created_at
		FROM processes p
		JOIN species s ON s.id = p.species_id
		WHERE p.installation_id = $1
		ORDER BY p.started_on DESC, p.created_at DESC`

	items := []Process{}
	if err := r.db.SelectContext(ctx, &items, query, installationID); err != nil {
		return nil, fmt.Errorf("list processes: %w", core.StorageError(ctx, err))
	}

	return items, nil
}

func (r *repository) Create(ctx context.Context, p *Process) error {
	query := `
		WITH inserted AS (
			INSERT INTO processes (
				id, installation_id, species_id, started_on, finished_on, status, notes
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING species_id, created_at
		)
		SELECT s.name, inserted.created_at
		FROM inserted
		JOIN species s ON s.id = inserted.species_id`

	err := r.db.QueryRowxContext(ctx, query,
		p.ID,
		p.InstallationID,
		p.SpeciesID,
		p.StartedOn,
		p.FinishedOn,
		p.Status,
		p.Notes,
	).Scan(&p.SpeciesName, &p.CreatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create process: unknown species: %w", core.ErrInvalidInput)
		}
		return fmt.Errorf("create process: %w", core.StorageError(ctx, err))
	}

	return nil
}

func (r *repository) ListSpecies(ctx context.Context) ([]Species, error) {
	species := []Species{}
	if err := r.db.SelectContext(ctx, &species, `SELECT id, name FROM species ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list species: %w", core.StorageError(ctx, err))
	}

	return species, nil
}
