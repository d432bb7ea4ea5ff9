package models

import (
	"encoding/json"
	"time"
)

type NotificationType string

const (
	NotificationTypeInicio NotificationType = "INICIO"
	NotificationTypeFin    NotificationType = "FIN"
	NotificationTypeOtro   NotificationType = "OTRO"
)

// Notification is one row of the append-only notificaciones table. A record
// with UsuarioID set targets exactly that user; otherwise delivery is scoped
// by (ZonaID, Hacienda) and the subscriber's role.
type Notification struct {
	ID        string           `json:"id" db:"id"`
	Tipo      NotificationType `json:"tipo" db:"tipo"`
	Titulo    string           `json:"titulo" db:"titulo"`
	Mensaje   string           `json:"mensaje" db:"mensaje"`
	UsuarioID *string          `json:"usuario_id,omitempty" db:"usuario_id"`
	ZonaID    *int             `json:"zona_id,omitempty" db:"zona_id"`
	Hacienda  *string          `json:"hacienda,omitempty" db:"hacienda"`
	CreatedBy *string          `json:"created_by,omitempty" db:"created_by"`
	Data      json.RawMessage  `json:"data,omitempty" db:"data"`
	Leido     bool             `json:"leido" db:"leido"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

// DuracionMin extracts data.duracion_min from the free-form payload. The
// second return value is false when the payload has no usable duration.
func (n Notification) DuracionMin() (int, bool) {
	if len(n.Data) == 0 {
		return 0, false
	}
	var payload struct {
		DuracionMin *float64 `json:"duracion_min"`
	}
	if err := json.Unmarshal(n.Data, &payload); err != nil || payload.DuracionMin == nil {
		return 0, false
	}
	return int(*payload.DuracionMin), true
}
