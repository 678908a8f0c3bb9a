// Package registry stores provider registrations: the association between a
// team and a concrete external identity provider configuration. The sign-in
// flow only reads it to select a providerId; recording happens after a
// successful provisioning so later sign-ins match the same registration.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRegistrationNotFound is returned when no registration matches a lookup
var ErrRegistrationNotFound = errors.New("provider registration not found")

// Registration binds a (teamId, providerName, providerId) tuple, optionally
// scoped to an email domain.
type Registration struct {
	TeamID     string    `json:"team_id" firestore:"team_id"`
	Provider   string    `json:"provider" firestore:"provider"`
	ProviderID string    `json:"provider_id" firestore:"provider_id"`
	Domain     string    `json:"domain,omitempty" firestore:"domain,omitempty"`
	CreatedAt  time.Time `json:"created_at" firestore:"created_at"`
}

// Store is the read/write surface over provider registrations.
type Store interface {
	// FindByDomain returns the registration scoped to exactly this
	// (team, provider, domain) tuple.
	FindByDomain(ctx context.Context, teamID, provider, domain string) (*Registration, error)

	// FindAny returns any registration for the (team, provider) pair.
	FindAny(ctx context.Context, teamID, provider string) (*Registration, error)

	// Upsert records (or refreshes) a registration.
	Upsert(ctx context.Context, reg *Registration) error

	Close() error
}

// DefaultDomainToken is used to derive a providerId when the identity
// carries no usable email domain.
const DefaultDomainToken = "default"

// DeriveProviderID derives a stable identifier from an email domain. The
// same domain always yields the same identifier, and unrelated domains can
// never collide.
func DeriveProviderID(domain string) string {
	if domain == "" {
		domain = DefaultDomainToken
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(domain)).String()
}

// Resolve applies the lookup policy: exact domain-scoped match first, any
// registration for the team second, a freshly derived identifier last. The
// returned registration is never nil on a nil error.
func Resolve(ctx context.Context, store Store, teamID, provider, domain string) (*Registration, error) {
	if teamID != "" {
		reg, err := store.FindByDomain(ctx, teamID, provider, domain)
		if err == nil {
			return reg, nil
		}
		if !errors.Is(err, ErrRegistrationNotFound) {
			return nil, err
		}

		reg, err = store.FindAny(ctx, teamID, provider)
		if err == nil {
			return reg, nil
		}
		if !errors.Is(err, ErrRegistrationNotFound) {
			return nil, err
		}
	}

	return &Registration{
		TeamID:     teamID,
		Provider:   provider,
		ProviderID: DeriveProviderID(domain),
		Domain:     domain,
		CreatedAt:  time.Now(),
	}, nil
}
