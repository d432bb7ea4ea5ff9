package eligibility

import (
	"testing"

	"github.com/campodata/maquinaria-api/internal/models"
	"github.com/stretchr/testify/assert"
)

func intPtr(i int) *int       { return &i }
func strPtr(s string) *string { return &s }

func subFor(userID string) models.PushSubscription {
	return models.PushSubscription{
		ID:       "sub-" + userID,
		UserID:   userID,
		Endpoint: "https://push.example.com/" + userID,
	}
}

func profile(rol models.Rol, zona *int, haciendas ...string) *models.UserProfile {
	return &models.UserProfile{
		UserID:             "user",
		Rol:                rol,
		Zona:               zona,
		HaciendasAsignadas: haciendas,
	}
}

func TestTargetedRecordIgnoresHierarchy(t *testing.T) {
	assert := assert.New(t)

	rec := models.Notification{
		Tipo:      models.NotificationTypeOtro,
		UsuarioID: strPtr("user-42"),
		ZonaID:    intPtr(1),
		Hacienda:  strPtr("LA LUISA"),
	}

	// The targeted user is eligible even with a role that would otherwise
	// never receive anything.
	assert.True(Eligible(rec, subFor("user-42"), profile(models.RolContratista, nil)))

	// Nobody else is, not even roles with global visibility.
	assert.False(Eligible(rec, subFor("user-1"), profile(models.RolAdmin, nil)))
	assert.False(Eligible(rec, subFor("user-2"), profile(models.RolAnalista, nil)))
	assert.False(Eligible(rec, subFor("user-3"), profile(models.RolJefeZona, nil)))
	assert.False(Eligible(rec, subFor("user-4"), profile(models.RolTecnico, intPtr(1), "LA LUISA")))
	assert.False(Eligible(rec, subFor("user-5"), nil))
}

func TestGlobalVisibilityRoles(t *testing.T) {
	assert := assert.New(t)

	records := []models.Notification{
		{Tipo: models.NotificationTypeInicio, ZonaID: intPtr(1), Hacienda: strPtr("LA LUISA")},
		{Tipo: models.NotificationTypeFin, ZonaID: intPtr(99)},
		{Tipo: models.NotificationTypeOtro},
	}
	for _, rol := range []models.Rol{models.RolAnalista, models.RolAuxiliar, models.RolAdmin} {
		for _, rec := range records {
			assert.True(Eligible(rec, subFor("u"), profile(rol, nil)),
				"role %s should see every non-targeted record", rol)
		}
	}
}

func TestJefeZona(t *testing.T) {
	assert := assert.New(t)

	recZona2 := models.Notification{ZonaID: intPtr(2)}
	recZona3 := models.Notification{ZonaID: intPtr(3)}
	recSinZona := models.Notification{}

	// Unrestricted zone manager sees every zone.
	unrestricted := profile(models.RolJefeZona, nil)
	assert.True(Eligible(recZona2, subFor("u"), unrestricted))
	assert.True(Eligible(recZona3, subFor("u"), unrestricted))
	assert.True(Eligible(recSinZona, subFor("u"), unrestricted))

	// A zone-bound manager only sees their own zone.
	bound := profile(models.RolJefeZona, intPtr(2))
	assert.True(Eligible(recZona2, subFor("u"), bound))
	assert.False(Eligible(recZona3, subFor("u"), bound))

	// A record without a zone never matches a bound manager; the two unset
	// values must not be considered equal.
	assert.False(Eligible(recSinZona, subFor("u"), bound))
}

func TestTecnicoRequiresZoneAndHacienda(t *testing.T) {
	assert := assert.New(t)

	rec := models.Notification{ZonaID: intPtr(1), Hacienda: strPtr("LA LUISA")}

	// Both match.
	assert.True(Eligible(rec, subFor("u"), profile(models.RolTecnico, intPtr(1), "ZAMBRANO", "LA LUISA")))

	// Zone matches, hacienda does not: conditions are ANDed, expect false.
	assert.False(Eligible(rec, subFor("u"), profile(models.RolTecnico, intPtr(1), "ZAMBRANO")))

	// Hacienda matches, zone does not.
	assert.False(Eligible(rec, subFor("u"), profile(models.RolTecnico, intPtr(2), "LA LUISA")))

	// Tecnico without a zone assignment is not an unrestricted manager.
	assert.False(Eligible(rec, subFor("u"), profile(models.RolTecnico, nil, "LA LUISA")))

	// Record without hacienda cannot match an assigned list.
	recSinHacienda := models.Notification{ZonaID: intPtr(1)}
	assert.False(Eligible(recSinHacienda, subFor("u"), profile(models.RolTecnico, intPtr(1), "LA LUISA")))
}

func TestOtherRolesAndMissingProfile(t *testing.T) {
	assert := assert.New(t)

	rec := models.Notification{ZonaID: intPtr(1), Hacienda: strPtr("LA LUISA")}

	assert.False(Eligible(rec, subFor("u"), profile(models.RolOperador, intPtr(1), "LA LUISA")))
	assert.False(Eligible(rec, subFor("u"), profile(models.RolContratista, intPtr(1), "LA LUISA")))
	assert.False(Eligible(rec, subFor("u"), profile(models.Rol("desconocido"), intPtr(1), "LA LUISA")))

	// Profile lookup failure fails closed.
	assert.False(Eligible(rec, subFor("u"), nil))
}

func TestScenarioFinLaLuisa(t *testing.T) {
	assert := assert.New(t)

	rec := models.Notification{
		Tipo:     models.NotificationTypeFin,
		ZonaID:   intPtr(1),
		Hacienda: strPtr("LA LUISA"),
		Data:     []byte(`{"duracion_min": 10}`),
	}

	subscribers := []models.Subscriber{
		{Subscription: subFor("a"), Profile: profile(models.RolTecnico, intPtr(1), "LA LUISA")},
		{Subscription: subFor("b"), Profile: profile(models.RolTecnico, intPtr(1), "ZAMBRANO")},
		{Subscription: subFor("c"), Profile: profile(models.RolJefeZona, nil)},
		{Subscription: subFor("d"), Profile: profile(models.RolAnalista, nil)},
		{Subscription: subFor("e"), Profile: profile(models.RolOperador, intPtr(1), "LA LUISA")},
	}

	eligible := FilterSubscribers(rec, subscribers)
	ids := make([]string, 0, len(eligible))
	for _, s := range eligible {
		ids = append(ids, s.Subscription.UserID)
	}
	assert.Equal([]string{"a", "c", "d"}, ids)
}

func TestFilterSubscribersEmpty(t *testing.T) {
	rec := models.Notification{ZonaID: intPtr(7)}
	assert.Empty(t, FilterSubscribers(rec, nil))
}
