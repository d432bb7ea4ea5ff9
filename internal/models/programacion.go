package models

import "time"

type ProgramacionEstado string

const (
	EstadoPendiente   ProgramacionEstado = "pendiente"
	EstadoAprobada    ProgramacionEstado = "aprobada"
	EstadoRechazada   ProgramacionEstado = "rechazada"
	EstadoEnEjecucion ProgramacionEstado = "en_ejecucion"
	EstadoFinalizada  ProgramacionEstado = "finalizada"
)

// Programacion is a scheduled machinery labor request: a labor (for example
// one of the roturación passes) to be executed on a suerte of a hacienda.
// OrdenRuta holds the position within the operator's daily route; reordering
// rewrites it as sequential integers.
type Programacion struct {
	ID            string             `json:"id" db:"id"`
	ZonaID        int                `json:"zona_id" db:"zona_id"`
	Hacienda      string             `json:"hacienda" db:"hacienda"`
	Suerte        string             `json:"suerte" db:"suerte"`
	Labor         string             `json:"labor" db:"labor"`
	Maquina       *string            `json:"maquina,omitempty" db:"maquina"`
	OperadorID    *string            `json:"operador_id,omitempty" db:"operador_id"`
	SolicitadoPor string             `json:"solicitado_por" db:"solicitado_por"`
	Estado        ProgramacionEstado `json:"estado" db:"estado"`
	MotivoRechazo *string            `json:"motivo_rechazo,omitempty" db:"motivo_rechazo"`
	OrdenRuta     int                `json:"orden_ruta" db:"orden_ruta"`
	FechaLabor    time.Time          `json:"fecha_labor" db:"fecha_labor"`
	HoraInicio    *time.Time         `json:"hora_inicio,omitempty" db:"hora_inicio"`
	HoraFin       *time.Time         `json:"hora_fin,omitempty" db:"hora_fin"`
	Horometro     *float64           `json:"horometro,omitempty" db:"horometro"`
	CostoTotal    *float64           `json:"costo_total,omitempty" db:"costo_total"`
	ReciboURL     *string            `json:"recibo_url,omitempty" db:"recibo_url"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" db:"updated_at"`
}

// DuracionMin returns the execution duration in whole minutes, if both
// timestamps are present.
func (p Programacion) DuracionMin() (int, bool) {
	if p.HoraInicio == nil || p.HoraFin == nil {
		return 0, false
	}
	return int(p.HoraFin.Sub(*p.HoraInicio).Minutes()), true
}
