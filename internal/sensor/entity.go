// AngelaMos | 2026
// entity.go

package sensor

import (
	"time"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

type Sensor struct {
	ID             string    `db:"id"              json:"id"`
	InstallationID string    `db:"installation_id" json:"installation_id"`
	SensorTypeID   int       `db:"sensor_type_id"  json:"sensor_type_id"`
	TypeName       string    `db:"type_name"       json:"type_name"`
	Unit           string    `db:"unit"            json:"unit"`
	Label          string    `db:"label"           json:"label"`
	Status         string    `db:"status"          json:"status"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}

type SensorType struct {
	ID   int    `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`
	Unit string `db:"unit" json:"unit"`
}

type CreateSensorRequest struct {
	SensorTypeID int    `json:"sensor_type_id" validate:"required,gt=0"`
	Label        string `json:"label"          validate:"required,max=150"`
	Status       string `json:"status"         validate:"omitempty,oneof=active inactive"`
}
