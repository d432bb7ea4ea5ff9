// Package eligibility decides which push subscribers a notification is
// delivered to. The predicate is pure: it works over an already-fetched
// snapshot and performs no I/O, so a dispatch invocation can filter its whole
// subscriber set synchronously.
package eligibility

import "github.com/campodata/maquinaria-api/internal/models"

// Eligible reports whether a notification should be delivered to the owner
// of the given subscription. Rules are evaluated in order, first match wins:
//
//  1. A record with usuario_id targets exactly that user.
//  2. analista, auxiliar and admin see everything.
//  3. A jefe_zona sees records for their zone; a jefe_zona without a zone
//     assignment sees every zone.
//  4. A tecnico sees records for their zone AND one of their assigned
//     haciendas. Both must match.
//  5. Every other role gets nothing.
//
// A missing profile means the subscription cannot be evaluated and is
// treated as not eligible.
func Eligible(rec models.Notification, sub models.PushSubscription, profile *models.UserProfile) bool {
	if rec.UsuarioID != nil {
		return sub.UserID == *rec.UsuarioID
	}
	if profile == nil {
		return false
	}

	if profile.Rol.HasGlobalVisibility() {
		return true
	}

	switch profile.Rol {
	case models.RolJefeZona:
		if profile.Zona == nil {
			return true
		}
		return zonaMatches(profile.Zona, rec.ZonaID)
	case models.RolTecnico:
		return zonaMatches(profile.Zona, rec.ZonaID) && haciendaAssigned(rec.Hacienda, profile.HaciendasAsignadas)
	default:
		return false
	}
}

// FilterSubscribers returns the subset of subscribers the record should be
// delivered to.
func FilterSubscribers(rec models.Notification, subscribers []models.Subscriber) []models.Subscriber {
	var eligible []models.Subscriber
	for _, s := range subscribers {
		if Eligible(rec, s.Subscription, s.Profile) {
			eligible = append(eligible, s)
		}
	}
	return eligible
}

// zonaMatches compares two optional zone IDs. An unset value on either side
// never matches; in particular an unset record zone must not collide with an
// unset profile zone.
func zonaMatches(profileZona, recordZona *int) bool {
	if profileZona == nil || recordZona == nil {
		return false
	}
	return *profileZona == *recordZona
}

func haciendaAssigned(hacienda *string, asignadas []string) bool {
	if hacienda == nil {
		return false
	}
	for _, h := range asignadas {
		if h == *hacienda {
			return true
		}
	}
	return false
}
