// Package config loads and validates the auth-front configuration from
// environment variables. Validation is strict: a misconfigured provider
// fails at startup, before any callback is accepted.
package config

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/bordkit/auth-front/internal/autherr"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// EnrichmentMode selects how the profile-enrichment service is consulted.
type EnrichmentMode string

const (
	// EnrichmentModeOff disables the enrichment source entirely.
	EnrichmentModeOff EnrichmentMode = ""

	// EnrichmentModeEmail looks the profile up by the email resolved from
	// the provider's own claims.
	EnrichmentModeEmail EnrichmentMode = "email"

	// EnrichmentModeConsent exchanges the consent code returned alongside
	// the provider callback for a service token, then fetches the profile.
	EnrichmentModeConsent EnrichmentMode = "consent"
)

// Provider describes one external identity provider registration.
type Provider struct {
	Name string `env:"NAME"`

	ClientID     string `env:"CLIENT_ID"`
	ClientSecret Secret `env:"CLIENT_SECRET"`

	// Either a discovery issuer or all three direct endpoints.
	Issuer           string `env:"ISSUER"`
	AuthorizationURL string `env:"AUTHORIZATION_URL"`
	TokenURL         string `env:"TOKEN_URL"`
	UserInfoURL      string `env:"USER_INFO_URL"`

	// Additional scopes beyond openid, comma-separated.
	Scopes []string `env:"SCOPES" envSeparator:","`

	// Claim path consulted first when resolving a display name.
	UsernameClaim string `env:"USERNAME_CLAIM"`

	UsePKCE bool `env:"PKCE" envDefault:"false"`

	// Optional profile-enrichment service.
	EnrichmentMode  EnrichmentMode `env:"ENRICHMENT_MODE"`
	EnrichmentURL   string         `env:"ENRICHMENT_URL"`
	EnrichmentToken Secret         `env:"ENRICHMENT_TOKEN"`
}

// Config is the whole auth-front configuration surface.
type Config struct {
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	Addr    string `env:"ADDR" envDefault:":8080"`

	// Master secret; per-purpose signing keys are derived from it.
	Secret Secret `env:"SECRET"`

	StateTTL        time.Duration `env:"STATE_TTL" envDefault:"5m"`
	OutboundTimeout time.Duration `env:"OUTBOUND_TIMEOUT" envDefault:"30s"`

	// Locales accepted for the preferred-language hint, comma-separated
	// underscore tags.
	SupportedLocales []string `env:"SUPPORTED_LOCALES" envSeparator:"," envDefault:"en_US,de_DE,es_ES,fr_FR,it_IT,ja_JP,nl_NL,pt_BR,ru_RU,zh_Hans,zh_Hant"`

	// Custom URL scheme used for desktop-client completion redirects.
	DesktopScheme string `env:"DESKTOP_SCHEME" envDefault:"bordkit"`

	// Account-provisioning boundary. Empty URL selects the local stub used
	// in development.
	ProvisionURL   string `env:"PROVISION_URL"`
	ProvisionToken Secret `env:"PROVISION_TOKEN"`

	// Database settings for the provider-registration store.
	RegistryDriver     string `env:"REGISTRY_DRIVER" envDefault:"sqlite"`
	RegistryDSN        string `env:"REGISTRY_DSN" envDefault:"file:auth-front.db"`
	FirestoreProject   string `env:"FIRESTORE_PROJECT"`
	RegistryCollection string `env:"FIRESTORE_COLLECTION" envDefault:"provider_registrations"`

	Provider Provider `envPrefix:"PROVIDER_"`
}

// Load parses configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "AUTH_FRONT_"}); err != nil {
		return nil, autherr.NewConfigurationError("env", err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for completeness. All failures are
// *autherr.ConfigurationError so startup can fail fast with a precise field.
func (c *Config) Validate() error {
	if len(c.Secret) < 32 {
		return autherr.NewConfigurationError("secret", "must be at least 32 bytes")
	}
	if _, err := url.Parse(c.BaseURL); err != nil || c.BaseURL == "" {
		return autherr.NewConfigurationError("baseUrl", "must be a valid URL")
	}
	return c.Provider.Validate()
}

// Validate checks a single provider registration.
func (p *Provider) Validate() error {
	if p.Name == "" {
		return autherr.NewConfigurationError("provider.name", "required")
	}
	if p.ClientID == "" {
		return autherr.NewConfigurationError("provider.clientId", "required")
	}
	if p.ClientSecret == "" {
		return autherr.NewConfigurationError("provider.clientSecret", "required")
	}

	if p.Issuer == "" {
		if p.AuthorizationURL == "" || p.TokenURL == "" || p.UserInfoURL == "" {
			return autherr.NewConfigurationError("provider.endpoints",
				"either issuer or all of authorizationUrl, tokenUrl, userInfoUrl must be set")
		}
	}

	switch p.EnrichmentMode {
	case EnrichmentModeOff:
	case EnrichmentModeEmail, EnrichmentModeConsent:
		if p.EnrichmentURL == "" {
			return autherr.NewConfigurationError("provider.enrichmentUrl",
				"required when enrichment is enabled")
		}
		if p.EnrichmentToken == "" {
			return autherr.NewConfigurationError("provider.enrichmentToken",
				"required when enrichment is enabled")
		}
	default:
		return autherr.NewConfigurationError("provider.enrichmentMode",
			"must be one of: email, consent")
	}

	return nil
}

// ExtraScopes returns the configured scopes with empty entries trimmed and
// the mandatory openid scope removed; callers force openid first themselves.
func (p *Provider) ExtraScopes() []string {
	var out []string
	for _, s := range p.Scopes {
		s = strings.TrimSpace(s)
		if s == "" || s == "openid" {
			continue
		}
		out = append(out, s)
	}
	return out
}
