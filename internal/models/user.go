package models

type Rol string

const (
	RolTecnico     Rol = "tecnico"
	RolJefeZona    Rol = "jefe_zona"
	RolAnalista    Rol = "analista"
	RolAuxiliar    Rol = "auxiliar"
	RolAdmin       Rol = "admin"
	RolOperador    Rol = "operador"
	RolContratista Rol = "contratista"
)

var validRoles = map[Rol]struct{}{
	RolTecnico:     {},
	RolJefeZona:    {},
	RolAnalista:    {},
	RolAuxiliar:    {},
	RolAdmin:       {},
	RolOperador:    {},
	RolContratista: {},
}

func IsValidRol(r Rol) bool {
	_, ok := validRoles[r]
	return ok
}

// HasGlobalVisibility reports whether the role sees every notification
// regardless of zone or hacienda scoping.
func (r Rol) HasGlobalVisibility() bool {
	return r == RolAnalista || r == RolAuxiliar || r == RolAdmin
}

// User is a row of the usuarios table. Zona is nil for users without a zone
// assignment; for a jefe_zona that means "all zones". HaciendasAsignadas only
// matters for the tecnico role.
type User struct {
	ID                 string   `json:"id"`
	Nombre             string   `json:"nombre"`
	Email              string   `json:"email"`
	PasswordHash       string   `json:"-"`
	Rol                Rol      `json:"rol"`
	Zona               *int     `json:"zona,omitempty"`
	HaciendasAsignadas []string `json:"haciendas_asignadas"`
	IsActive           bool     `json:"is_active"`
}

// UserProfile is the organizational slice of a user that notification
// eligibility is evaluated against.
type UserProfile struct {
	UserID             string   `json:"user_id"`
	Rol                Rol      `json:"rol"`
	Zona               *int     `json:"zona,omitempty"`
	HaciendasAsignadas []string `json:"haciendas_asignadas"`
}
