// Package claims resolves a subject identity from up to three sources: an
// optional profile-enrichment service, the provider's user-info endpoint,
// and the decoded ID token payload. Sources are merged under a strict
// precedence policy; the result either satisfies every required field or the
// whole callback fails.
package claims

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/emailutil"
	"github.com/bordkit/auth-front/internal/log"
)

// Identity is the resolved contract handed to the provisioning layer.
type Identity struct {
	Email             string
	DisplayName       string
	AvatarURL         string
	PreferredLanguage string
	ExternalSubjectID string

	// RawDebug is the merged claim bag, for diagnostics only. It never
	// contains tokens.
	RawDebug Bag
}

// Input carries everything the resolver may need from the callback.
type Input struct {
	AccessToken   string
	IDTokenClaims map[string]any

	// UserInfoURL is the user-info endpoint resolved for this callback,
	// which in discovery mode is only known at runtime. A statically
	// configured endpoint overrides it.
	UserInfoURL string

	// ConsentCode is the enrichment-service consent code delivered with the
	// callback; only meaningful in consent mode.
	ConsentCode string
}

// Conventional fallback fields consulted for a display name, in order,
// after the configured claim path.
var displayNameFallbacks = []string{"name", "preferred_username", "nickname"}

// Resolver merges identity claims from the configured sources.
type Resolver struct {
	provider         *config.Provider
	userInfo         *UserInfoSource
	enrichment       *EnrichmentSource
	supportedLocales []string
}

// NewResolver wires a resolver from its sources.
func NewResolver(p *config.Provider, userInfo *UserInfoSource, enrichment *EnrichmentSource, supportedLocales []string) *Resolver {
	return &Resolver{
		provider:         p,
		userInfo:         userInfo,
		enrichment:       enrichment,
		supportedLocales: supportedLocales,
	}
}

// Resolve consults the sources in precedence order and validates the merged
// result. HTTP failures are ErrAuthExchangeFailed; a missing required field
// after every source was consulted is ErrValidationFailed.
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Identity, error) {
	providerBag := Bag(in.IDTokenClaims)

	if userInfoURL := r.userInfo.Endpoint(in.UserInfoURL); userInfoURL != "" {
		uiBag, err := r.userInfo.Fetch(ctx, userInfoURL, in.AccessToken)
		if err != nil {
			return nil, err
		}
		// User-info wins over ID token claims field by field.
		providerBag = uiBag.Merge(providerBag)
	}

	email := emailutil.Normalize(providerBag.String("email"))

	var enrichBag Bag
	switch {
	case !r.enrichment.Configured():
	case r.enrichment.NeedsEmail() && email == "":
		// No lookup key; the provider sources carry the identity alone.
		log.LogDebugWithFields("claims", "Skipping enrichment lookup without an email", map[string]any{
			"provider": r.provider.Name,
		})
	default:
		var err error
		enrichBag, err = r.enrichment.Fetch(ctx, email, in.ConsentCode)
		if err != nil {
			return nil, err
		}
		if email == "" {
			email = emailutil.Normalize(enrichBag.String("email"))
		}
	}

	merged := enrichBag.Merge(providerBag)

	identity := &Identity{
		Email:    email,
		RawDebug: merged,
	}

	identity.DisplayName = r.resolveDisplayName(enrichBag, providerBag, email)
	identity.ExternalSubjectID = resolveSubject(providerBag, enrichBag)

	// Enrichment-resolved avatars take precedence over provider claims.
	avatar := enrichBag.FirstString("avatar_url", "picture")
	if avatar == "" {
		avatar = providerBag.FirstString("picture", "avatar_url")
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(avatar)), "data:") {
		log.LogErrorWithFields("claims", "Rejecting embedded-data avatar", map[string]any{
			"provider": r.provider.Name,
		})
		return nil, fmt.Errorf("%w: avatar is an embedded-data URL", autherr.ErrValidationFailed)
	}
	identity.AvatarURL = avatar

	rawLocale := enrichBag.FirstString("language", "locale")
	if rawLocale == "" {
		rawLocale = providerBag.FirstString("locale", "language")
	}
	if normalized, ok := NormalizeLocale(rawLocale, r.supportedLocales); ok {
		identity.PreferredLanguage = normalized
	}

	if err := r.validate(identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// resolveDisplayName applies the precedence policy: the enrichment profile's
// name always wins once resolved, then the configured claim path, then the
// conventional fallbacks, then a name assembled from given/family parts,
// then the email local part.
func (r *Resolver) resolveDisplayName(enrichBag, providerBag Bag, email string) string {
	if name := enrichBag.FirstString("display_name", "name"); name != "" {
		return name
	}

	paths := displayNameFallbacks
	if r.provider.UsernameClaim != "" {
		paths = append([]string{r.provider.UsernameClaim}, paths...)
	}
	if name := providerBag.FirstString(paths...); name != "" {
		return name
	}

	given := providerBag.String("given_name")
	family := providerBag.String("family_name")
	if given != "" || family != "" {
		return strings.TrimSpace(given + " " + family)
	}

	return emailutil.LocalPart(email)
}

// resolveSubject prefers the provider's sub claim, then an id field, then
// the enrichment service's own identifier.
func resolveSubject(providerBag, enrichBag Bag) string {
	if sub := providerBag.String("sub"); sub != "" {
		return sub
	}
	if id := identifier(providerBag, "id"); id != "" {
		return id
	}
	return identifier(enrichBag, "id")
}

// identifier reads a claim that providers variously encode as a string or a
// JSON number.
func identifier(b Bag, path string) string {
	if s := b.String(path); s != "" {
		return s
	}
	if b == nil {
		return ""
	}
	if v, ok := b[path]; ok {
		if f, ok := v.(float64); ok {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return ""
}

func (r *Resolver) validate(identity *Identity) error {
	var missing []string
	if identity.Email == "" {
		missing = append(missing, "email")
	}
	if identity.DisplayName == "" {
		missing = append(missing, "displayName")
	}
	if identity.ExternalSubjectID == "" {
		missing = append(missing, "externalSubjectId")
	}

	if len(missing) > 0 {
		// The raw claim bag pinpoints a misconfigured provider. Tokens never
		// enter the bag.
		log.LogErrorWithFields("claims", "Identity resolution incomplete", map[string]any{
			"provider":       r.provider.Name,
			"missing":        missing,
			"usernameClaim":  r.provider.UsernameClaim,
			"attemptedPaths": displayNameFallbacks,
			"claims":         identity.RawDebug,
		})
		return fmt.Errorf("%w: missing %s", autherr.ErrValidationFailed, strings.Join(missing, ", "))
	}
	return nil
}
