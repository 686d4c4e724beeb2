// AngelaMos | 2026
// repository.go

package sensor

import (
	"context"
	"fmt"

	"github.com/aquasense/sonda-api/internal/core"
)

type Repository interface {
	ListByInstallation(ctx context.Context, installationID string) ([]Sensor, error)
	Create(ctx context.Context, s *Sensor) error
	ListTypes(ctx context.Context) ([]SensorType, error)
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
) ([]Sensor, error) {
	query := `
		SELECT s.id, s.installation_id, s.sensor_type_id, t.name AS type_name,
		       t.unit, s.label, s.status, s.created_at
		FROM sensors s
		JOIN sensor_types t ON t.id = s.sensor_type_id
		WHERE s.installation_id = $1
		ORDER BY s.label ASC, s.id ASC`

	sensors := []Sensor{}
	if err := r.db.SelectContext(ctx, &sensors, query, installationID); err != nil {
		return nil, fmt.Errorf("list sensors: %w", core.StorageError(ctx, err))
	}

	return sensors, nil
}

// Create inserts the sensor and reads back the type columns in one statement.
func (r *repository) Create(ctx context.Context, s *Sensor) error {
	query := `
		WITH inserted AS (
			INSERT INTO sensors (id, installation_id, sensor_type_id, label, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING sensor_type_id, created_at
		)
		SELECT t.name, t.unit, inserted.created_at
		FROM inserted
		JOIN sensor_types t ON t.id = inserted.sensor_type_id`

	err := r.db.QueryRowxContext(ctx, query,
		s.ID,
		s.InstallationID,
		s.SensorTypeID,
		s.Label,
		s.Status,
	).Scan(&s.TypeName, &s.Unit, &s.CreatedAt)
	if err != nil {
		if core.IsForeignKeyError(err) {
			return fmt.Errorf("create sensor: unknown sensor type: %w", core.ErrInvalidInput)
		}
		return fmt.Errorf("create sensor: %w", core.StorageError(ctx, err))
	}

	return nil
}

func (r *repository) ListTypes(ctx context.Context) ([]SensorType, error) {
	types := []SensorType{}
	err := r.db.SelectContext(ctx, &types, `SELECT id, name, unit FROM sensor_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list sensor types: %w", core.StorageError(ctx, err))
	}

	return types, nil
}
