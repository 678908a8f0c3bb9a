// Package provision maps a resolved identity to a provider registration and
// hands it to the external account-provisioning boundary. Whether a user or
// team is created or matched is entirely that boundary's policy; this layer
// only prepares the request and classifies failures.
package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/claims"
	"github.com/bordkit/auth-front/internal/emailutil"
	"github.com/bordkit/auth-front/internal/idp"
	"github.com/bordkit/auth-front/internal/log"
	"github.com/bordkit/auth-front/internal/registry"
)

// TeamHints describe the team the provisioner may create or match.
type TeamHints struct {
	Name      string
	Domain    string
	Subdomain string
	AvatarURL string
}

// UserHints describe the user the provisioner may create or match.
type UserHints struct {
	Name      string
	Email     string
	AvatarURL string
	Language  string
}

// AuthMaterial carries the provider credentials attached to the account.
type AuthMaterial struct {
	ExternalSubjectID string
	AccessToken       string
	RefreshToken      string
	Scope             string
	ExpiresIn         int64
}

// Request is the full provisioning request handed to the boundary.
type Request struct {
	Team     TeamHints
	User     UserHints
	Provider string
	// ProviderID is the registration identifier selected by the lookup
	// policy.
	ProviderID string
	Auth       AuthMaterial
}

// Result is what the session layer needs to sign the user in.
type Result struct {
	UserID   string `json:"user_id"`
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
}

// Provisioner is the external account-provisioning boundary.
type Provisioner interface {
	Provision(ctx context.Context, req *Request) (*Result, error)
}

// RequestContext carries per-callback hints that are not part of the
// resolved identity.
type RequestContext struct {
	// TeamID scopes the registration lookup when the sign-in targets a
	// known team. Empty for first-contact sign-ins.
	TeamID string
}

// Bridge wires identity resolution output to the provisioner.
type Bridge struct {
	store        registry.Store
	provisioner  Provisioner
	providerName string
}

// NewBridge creates a provisioning bridge for one provider.
func NewBridge(store registry.Store, provisioner Provisioner, providerName string) *Bridge {
	return &Bridge{
		store:        store,
		provisioner:  provisioner,
		providerName: providerName,
	}
}

// Provision runs the registration lookup, builds the provisioning request,
// and delegates to the boundary. Every failure surfaces as a
// *autherr.ProvisioningError; the boundary's own errors pass through with
// their notice and redirect preferences intact.
func (b *Bridge) Provision(ctx context.Context, identity *claims.Identity, tokens *idp.TokenSet, reqCtx RequestContext) (*Result, error) {
	domain := emailutil.ExtractDomain(identity.Email)

	reg, err := registry.Resolve(ctx, b.store, reqCtx.TeamID, b.providerName, domain)
	if err != nil {
		return nil, &autherr.ProvisioningError{
			Notice: string(autherr.KindProvisioningError),
			Err:    fmt.Errorf("registration lookup: %w", err),
		}
	}

	req := &Request{
		Team: TeamHints{
			Name:      domain,
			Domain:    domain,
			Subdomain: deriveSubdomain(domain),
			AvatarURL: identity.AvatarURL,
		},
		User: UserHints{
			Name:      identity.DisplayName,
			Email:     identity.Email,
			AvatarURL: identity.AvatarURL,
			Language:  identity.PreferredLanguage,
		},
		Provider:   b.providerName,
		ProviderID: reg.ProviderID,
		Auth: AuthMaterial{
			ExternalSubjectID: identity.ExternalSubjectID,
			AccessToken:       tokens.AccessToken,
			RefreshToken:      tokens.RefreshToken,
			Scope:             tokens.Scope,
			ExpiresIn:         tokens.ExpiresIn,
		},
	}

	result, err := b.provisioner.Provision(ctx, req)
	if err != nil {
		var provErr *autherr.ProvisioningError
		if errors.As(err, &provErr) {
			return nil, provErr
		}
		return nil, &autherr.ProvisioningError{
			Notice: string(autherr.KindProvisioningError),
			Err:    err,
		}
	}

	// Record the registration so subsequent sign-ins from this domain match
	// the same providerId. Failure to record is not fatal: the derivation is
	// deterministic, so the next sign-in lands on the same identifier.
	reg.TeamID = result.TeamID
	if err := b.store.Upsert(ctx, reg); err != nil {
		log.LogWarnWithFields("provision", "Failed to record provider registration", map[string]any{
			"provider": b.providerName,
			"domain":   domain,
			"error":    err.Error(),
		})
	}

	return result, nil
}

// deriveSubdomain reduces an email domain to a DNS-label-safe team
// subdomain hint: the first label, lowercased, non-alphanumerics stripped.
func deriveSubdomain(domain string) string {
	label, _, _ := strings.Cut(domain, ".")
	var sb strings.Builder
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		}
	}
	return strings.Trim(sb.String(), "-")
}
