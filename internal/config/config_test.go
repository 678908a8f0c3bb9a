package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordkit/auth-front/internal/autherr"
)

func validConfig() *Config {
	return &Config{
		BaseURL: "https://app.example.com",
		Secret:  "0123456789abcdef0123456789abcdef",
		Provider: Provider{
			Name:             "okta",
			ClientID:         "client-id",
			ClientSecret:     "client-secret",
			AuthorizationURL: "https://idp.example.com/authorize",
			TokenURL:         "https://idp.example.com/token",
			UserInfoURL:      "https://idp.example.com/userinfo",
		},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.Secret = "short"

	err := cfg.Validate()
	var confErr *autherr.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "secret", confErr.Field)
}

func TestValidateMissingEndpoints(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.Issuer = ""
	cfg.Provider.TokenURL = ""

	err := cfg.Validate()
	var confErr *autherr.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "provider.endpoints", confErr.Field)
}

func TestValidateIssuerReplacesEndpoints(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.AuthorizationURL = ""
	cfg.Provider.TokenURL = ""
	cfg.Provider.UserInfoURL = ""
	cfg.Provider.Issuer = "https://idp.example.com"

	require.NoError(t, cfg.Validate())
}

func TestValidateEnrichment(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.EnrichmentMode = EnrichmentModeEmail

	err := cfg.Validate()
	var confErr *autherr.ConfigurationError
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "provider.enrichmentUrl", confErr.Field)

	cfg.Provider.EnrichmentURL = "https://enrich.example.com"
	cfg.Provider.EnrichmentToken = "service-token"
	require.NoError(t, cfg.Validate())

	cfg.Provider.EnrichmentMode = "bogus"
	err = cfg.Validate()
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "provider.enrichmentMode", confErr.Field)
}

func TestExtraScopes(t *testing.T) {
	p := Provider{Scopes: []string{"openid", " email", "profile", "", "email"}}
	assert.Equal(t, []string{"email", "profile", "email"}, p.ExtraScopes())
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret")
	assert.Equal(t, "***", s.String())

	data, err := json.Marshal(struct {
		Token Secret `json:"token"`
	}{Token: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"token":"***"}`, string(data))

	assert.Equal(t, "", Secret("").String())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AUTH_FRONT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_FRONT_PROVIDER_NAME", "okta")
	t.Setenv("AUTH_FRONT_PROVIDER_CLIENT_ID", "cid")
	t.Setenv("AUTH_FRONT_PROVIDER_CLIENT_SECRET", "cs")
	t.Setenv("AUTH_FRONT_PROVIDER_ISSUER", "https://idp.example.com")
	t.Setenv("AUTH_FRONT_PROVIDER_SCOPES", "email,profile")
	t.Setenv("AUTH_FRONT_PROVIDER_PKCE", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "okta", cfg.Provider.Name)
	assert.True(t, cfg.Provider.UsePKCE)
	assert.Equal(t, []string{"email", "profile"}, cfg.Provider.Scopes)
	assert.Equal(t, ":8080", cfg.Addr)
}
