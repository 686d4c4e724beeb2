// AngelaMos | 2026
// service_test.go

package sensor

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/core"
)

const (
	owner    = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	stranger = "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb"
	pond     = "7b0c5f0e-4d7a-4f55-9d59-3c3a0f0d1a01"
)

type fakeAuthorizer struct {
	allowed map[string]bool
	calls   []access.Action
}

func (f *fakeAuthorizer) Authorize(
	_ context.Context,
	userID, _ string,
	action access.Action,
) (*access.Facts, error) {
	f.calls = append(f.calls, action)
	if !f.allowed[userID] {
		return nil, fmt.Errorf("authorize: %w", core.ErrForbidden)
	}
	return &access.Facts{Status: "active"}, nil
}

type fakeRepo struct {
	sensors []Sensor
	lists   int
}

func (f *fakeRepo) ListByInstallation(_ context.Context, installationID string) ([]Sensor, error) {
	f.lists++
	out := []Sensor{}
	for _, s := range f.sensors {
		if s.InstallationID == installationID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) Create(_ context.Context, s *Sensor) error {
	if s.SensorTypeID > 5 {
		return fmt.Errorf("create sensor: unknown sensor type: %w", core.ErrInvalidInput)
	}
	s.TypeName = "temperature"
	f.sensors = append(f.sensors, *s)
	return nil
}

func (f *fakeRepo) ListTypes(context.Context) ([]SensorType, error) {
	return []SensorType{{ID: 2, Name: "temperature", Unit: "C"}}, nil
}

func TestListRequiresRead(t *testing.T) {
	authz := &fakeAuthorizer{allowed: map[string]bool{owner: true}}
	repo := &fakeRepo{sensors: []Sensor{{ID: "s1", InstallationID: pond, Label: "probe"}}}
	svc := NewService(repo, authz)
	ctx := context.Background()

	sensors, err := svc.List(ctx, owner, pond)
	require.NoError(t, err)
	assert.Len(t, sensors, 1)
	assert.Equal(t, []access.Action{access.ActionRead}, authz.calls)

	_, err = svc.List(ctx, stranger, pond)
	require.ErrorIs(t, err, core.ErrForbidden)
	assert.Equal(t, 1, repo.lists)
}

func TestCreateSensor(t *testing.T) {
	authz := &fakeAuthorizer{allowed: map[string]bool{owner: true}}
	repo := &fakeRepo{}
	svc := NewService(repo, authz)
	ctx := context.Background()

	sensor, err := svc.Create(ctx, owner, pond, CreateSensorRequest{SensorTypeID: 2, Label: " probe A "})
	require.NoError(t, err)
	assert.Equal(t, "probe A", sensor.Label)
	assert.Equal(t, StatusActive, sensor.Status)
	assert.Equal(t, access.ActionWrite, authz.calls[0])

	_, err = svc.Create(ctx, owner, pond, CreateSensorRequest{SensorTypeID: 9, Label: "x"})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = svc.Create(ctx, owner, pond, CreateSensorRequest{SensorTypeID: 2, Label: "  "})
	require.ErrorIs(t, err, core.ErrInvalidInput)

	checked := len(authz.calls)
	_, err = svc.Create(ctx, stranger, pond, CreateSensorRequest{SensorTypeID: 2, Label: "  "})
	require.ErrorIs(t, err, core.ErrInvalidInput)
	assert.Len(t, authz.calls, checked)

	_, err = svc.Create(ctx, stranger, pond, CreateSensorRequest{SensorTypeID: 2, Label: "x"})
	require.ErrorIs(t, err, core.ErrForbidden)
	assert.Len(t, repo.sensors, 1)
}
