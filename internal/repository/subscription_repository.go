package repository

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/campodata/maquinaria-api/internal/models"
)

type SubscriptionRepository interface {
	// Upsert registers a push subscription keyed on endpoint uniqueness.
	// Re-registration from the same browser replaces the existing row.
	Upsert(ctx context.Context, userID, endpoint, p256dh, auth string) (models.PushSubscription, error)

	// DeleteByEndpoint removes a subscription regardless of owner. This is
	// the pruning path for endpoints the push provider reported dead.
	// Deleting an endpoint that is already gone is not an error.
	DeleteByEndpoint(ctx context.Context, endpoint string) error

	// DeleteOwned removes a subscription only when the endpoint belongs to
	// userID. This is the self-service unsubscribe path; one user cannot
	// remove another user's subscription.
	DeleteOwned(ctx context.Context, endpoint, userID string) error

	// ListWithProfiles fetches every subscription joined with its owner's
	// organizational profile in a single query. Subscriptions whose owner
	// row is missing come back with a nil profile.
	ListWithProfiles(ctx context.Context) ([]models.Subscriber, error)
}

type subscriptionRepository struct {
	db *sql.DB
}

func NewSubscriptionRepository(db *sql.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Upsert(ctx context.Context, userID, endpoint, p256dh, auth string) (models.PushSubscription, error) {
	wrapMsg := "unable to register push subscription"

	const query = `
		INSERT INTO suscripciones_push (user_id, endpoint, p256dh, auth)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (endpoint) DO UPDATE
		SET user_id = EXCLUDED.user_id,
		    p256dh = EXCLUDED.p256dh,
		    auth = EXCLUDED.auth,
		    updated_at = NOW()
		RETURNING id, user_id, endpoint, p256dh, auth, updated_at
	`

	var sub models.PushSubscription
	err := r.db.QueryRowContext(ctx, query, userID, endpoint, p256dh, auth).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Endpoint,
		&sub.P256dh,
		&sub.Auth,
		&sub.UpdatedAt,
	)
	if err != nil {
		return models.PushSubscription{}, errors.Wrap(err, wrapMsg)
	}
	return sub, nil
}

func (r *subscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	const query = `DELETE FROM suscripciones_push WHERE endpoint = $1`
	if _, err := r.db.ExecContext(ctx, query, endpoint); err != nil {
		return errors.Wrap(err, "unable to delete push subscription")
	}
	return nil
}

func (r *subscriptionRepository) DeleteOwned(ctx context.Context, endpoint, userID string) error {
	const query = `DELETE FROM suscripciones_push WHERE endpoint = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, endpoint, userID); err != nil {
		return errors.Wrap(err, "unable to delete push subscription")
	}
	return nil
}

func (r *subscriptionRepository) ListWithProfiles(ctx context.Context) ([]models.Subscriber, error) {
	wrapMsg := "unable to fetch push subscriptions"

	const query = `
		SELECT s.id, s.user_id, s.endpoint, s.p256dh, s.auth, s.updated_at,
		       u.id, u.rol, u.zona, u.haciendas_asignadas
		FROM suscripciones_push s
		LEFT JOIN usuarios u ON u.id = s.user_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	defer rows.Close()

	var subscribers []models.Subscriber
	for rows.Next() {
		var (
			sub       models.PushSubscription
			profileID sql.NullString
			rol       sql.NullString
			zona      sql.NullInt64
			haciendas pq.StringArray
		)
		err := rows.Scan(
			&sub.ID,
			&sub.UserID,
			&sub.Endpoint,
			&sub.P256dh,
			&sub.Auth,
			&sub.UpdatedAt,
			&profileID,
			&rol,
			&zona,
			&haciendas,
		)
		if err != nil {
			return nil, errors.Wrap(err, wrapMsg)
		}

		subscriber := models.Subscriber{Subscription: sub}
		if profileID.Valid {
			profile := models.UserProfile{
				UserID:             profileID.String,
				Rol:                models.Rol(rol.String),
				HaciendasAsignadas: haciendas,
			}
			if zona.Valid {
				z := int(zona.Int64)
				profile.Zona = &z
			}
			subscriber.Profile = &profile
		}
		subscribers = append(subscribers, subscriber)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}
	return subscribers, nil
}
