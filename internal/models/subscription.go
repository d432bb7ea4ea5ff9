package models

import "time"

// PushSubscription stores a browser push registration: the provider endpoint
// plus the two client encryption keys. At most one row exists per endpoint;
// re-registration from the same browser replaces the row.
type PushSubscription struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Endpoint  string    `json:"endpoint" db:"endpoint"`
	P256dh    string    `json:"p256dh" db:"p256dh"`
	Auth      string    `json:"auth" db:"auth"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Subscriber pairs a push subscription with its owner's profile. Profile is
// nil when the join found no matching user; eligibility treats that as not
// deliverable.
type Subscriber struct {
	Subscription PushSubscription
	Profile      *UserProfile
}
