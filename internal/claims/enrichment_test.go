package claims

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/config"
)

func enrichedResolver(t *testing.T, userInfoURL string, p *config.Provider) *Resolver {
	t.Helper()
	return NewResolver(p,
		NewUserInfoSource(userInfoURL, bearerClient(t)),
		NewEnrichmentSource(p, nil),
		testLocales,
	)
}

func TestEnrichmentNameWinsOverUserInfo(t *testing.T) {
	userInfo := userInfoServer(t, http.StatusOK, map[string]any{
		"sub":     "subject-1",
		"email":   "a@example.com",
		"name":    "UserInfo Name",
		"picture": "https://cdn.example.com/ui.png",
	})
	defer userInfo.Close()

	var lookedUpEmail string
	enrich := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
		lookedUpEmail = r.URL.Query().Get("email")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "enrich-77",
			"display_name": "Enriched Name",
			"avatar_url":   "https://cdn.example.com/enriched.png",
			"language":     "de-DE",
		})
	}))
	defer enrich.Close()

	p := &config.Provider{
		Name:            "okta",
		EnrichmentMode:  config.EnrichmentModeEmail,
		EnrichmentURL:   enrich.URL,
		EnrichmentToken: "service-token",
	}

	identity, err := enrichedResolver(t, userInfo.URL, p).Resolve(context.Background(), Input{AccessToken: "t1"})
	require.NoError(t, err)

	// The email resolved from the provider seeds the enrichment lookup.
	assert.Equal(t, "a@example.com", lookedUpEmail)

	// Once the enrichment profile resolves, its fields win.
	assert.Equal(t, "Enriched Name", identity.DisplayName)
	assert.Equal(t, "https://cdn.example.com/enriched.png", identity.AvatarURL)
	assert.Equal(t, "de_DE", identity.PreferredLanguage)

	// The provider subject still wins over the enrichment identifier.
	assert.Equal(t, "subject-1", identity.ExternalSubjectID)
}

func TestEnrichmentUnknownProfileFallsBack(t *testing.T) {
	userInfo := userInfoServer(t, http.StatusOK, map[string]any{
		"sub":   "subject-1",
		"email": "a@example.com",
		"name":  "UserInfo Name",
	})
	defer userInfo.Close()

	enrich := userInfoServer(t, http.StatusNotFound, nil)
	defer enrich.Close()

	p := &config.Provider{
		Name:            "okta",
		EnrichmentMode:  config.EnrichmentModeEmail,
		EnrichmentURL:   enrich.URL,
		EnrichmentToken: "service-token",
	}

	identity, err := enrichedResolver(t, userInfo.URL, p).Resolve(context.Background(), Input{AccessToken: "t1"})
	require.NoError(t, err)
	assert.Equal(t, "UserInfo Name", identity.DisplayName)
}

func TestEnrichmentEmailLookupSkippedWithoutEmail(t *testing.T) {
	userInfo := userInfoServer(t, http.StatusOK, map[string]any{
		"sub":  "subject-1",
		"name": "Alice",
	})
	defer userInfo.Close()

	enrichHits := 0
	enrich := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enrichHits++
		w.WriteHeader(http.StatusOK)
	}))
	defer enrich.Close()

	p := &config.Provider{
		Name:            "okta",
		EnrichmentMode:  config.EnrichmentModeEmail,
		EnrichmentURL:   enrich.URL,
		EnrichmentToken: "service-token",
	}

	// Without an email there is nothing to key the lookup on; the service
	// is never contacted and the missing email fails validation.
	_, err := enrichedResolver(t, userInfo.URL, p).Resolve(context.Background(), Input{AccessToken: "t1"})
	require.ErrorIs(t, err, autherr.ErrValidationFailed)
	assert.Equal(t, 0, enrichHits)
}

func TestEnrichmentServerErrorFailsCallback(t *testing.T) {
	userInfo := userInfoServer(t, http.StatusOK, map[string]any{
		"sub":   "subject-1",
		"email": "a@example.com",
		"name":  "Alice",
	})
	defer userInfo.Close()

	enrich := userInfoServer(t, http.StatusInternalServerError, nil)
	defer enrich.Close()

	p := &config.Provider{
		Name:            "okta",
		EnrichmentMode:  config.EnrichmentModeEmail,
		EnrichmentURL:   enrich.URL,
		EnrichmentToken: "service-token",
	}

	_, err := enrichedResolver(t, userInfo.URL, p).Resolve(context.Background(), Input{AccessToken: "t1"})
	assert.ErrorIs(t, err, autherr.ErrAuthExchangeFailed)
}

func TestEnrichmentConsentExchange(t *testing.T) {
	var gotCode string
	enrich := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/consent/exchange", r.URL.Path)
		require.NoError(t, r.ParseForm())
		gotCode = r.FormValue("code")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           "enrich-42",
			"email":        "consent@example.com",
			"display_name": "Consent User",
		})
	}))
	defer enrich.Close()

	p := &config.Provider{
		Name:            "okta",
		EnrichmentMode:  config.EnrichmentModeConsent,
		EnrichmentURL:   enrich.URL,
		EnrichmentToken: "service-token",
	}

	// No user-info endpoint: the enrichment profile is the only source.
	identity, err := enrichedResolver(t, "", p).Resolve(context.Background(), Input{ConsentCode: "consent-abc"})
	require.NoError(t, err)

	assert.Equal(t, "consent-abc", gotCode)
	assert.Equal(t, "consent@example.com", identity.Email)
	assert.Equal(t, "Consent User", identity.DisplayName)

	// Enrichment-only path: the service's own identifier is the subject.
	assert.Equal(t, "enrich-42", identity.ExternalSubjectID)
}

func TestEnrichmentAvatarDataURLRejected(t *testing.T) {
	enrich := userInfoServer(t, http.StatusOK, map[string]any{
		"id":           "enrich-42",
		"email":        "a@example.com",
		"display_name": "Alice",
		"avatar_url":   "data:image/gif;base64,R0lGOD==",
	})
	defer enrich.Close()

	p := &config.Provider{
		Name:            "okta",
		EnrichmentMode:  config.EnrichmentModeConsent,
		EnrichmentURL:   enrich.URL,
		EnrichmentToken: "service-token",
	}

	_, err := enrichedResolver(t, "", p).Resolve(context.Background(), Input{ConsentCode: "consent-abc"})
	assert.ErrorIs(t, err, autherr.ErrValidationFailed)
}
