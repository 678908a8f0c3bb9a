package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/log"
)

// EnrichmentSource consults an external profile-enrichment service. Two
// protocols are supported: a profile lookup keyed by email, and a consent
// exchange that trades the callback's consent code for the profile.
type EnrichmentSource struct {
	mode         config.EnrichmentMode
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

// NewEnrichmentSource builds the source from provider configuration. When
// enrichment is off the source reports itself unconfigured and is skipped.
func NewEnrichmentSource(p *config.Provider, httpClient *http.Client) *EnrichmentSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &EnrichmentSource{
		mode:         p.EnrichmentMode,
		baseURL:      strings.TrimRight(p.EnrichmentURL, "/"),
		serviceToken: string(p.EnrichmentToken),
		httpClient:   httpClient,
	}
}

func (s *EnrichmentSource) Configured() bool {
	return s != nil && s.mode != config.EnrichmentModeOff
}

// NeedsEmail reports whether this source keys its lookup by email, in which
// case the resolver must establish an email from the other sources first.
func (s *EnrichmentSource) NeedsEmail() bool {
	return s.mode == config.EnrichmentModeEmail
}

// Fetch retrieves the enrichment profile. email is the lookup key in email
// mode; consentCode is the code handed back by the provider callback in
// consent mode. An empty profile response (unknown user) is not an error;
// it returns a nil bag.
func (s *EnrichmentSource) Fetch(ctx context.Context, email, consentCode string) (Bag, error) {
	switch s.mode {
	case config.EnrichmentModeEmail:
		return s.lookupByEmail(ctx, email)
	case config.EnrichmentModeConsent:
		return s.exchangeConsent(ctx, consentCode)
	default:
		return nil, nil
	}
}

func (s *EnrichmentSource) lookupByEmail(ctx context.Context, email string) (Bag, error) {
	if email == "" {
		return nil, nil
	}

	u := fmt.Sprintf("%s/v1/profiles?email=%s", s.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: enrichment request: %v", autherr.ErrAuthExchangeFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.serviceToken)

	return s.do(req, "profile lookup")
}

// exchangeConsent trades the consent code for the profile. The service's own
// token for the profile is returned inside the response body and stays in
// this layer; the authorization code is never reused as an access token.
func (s *EnrichmentSource) exchangeConsent(ctx context.Context, consentCode string) (Bag, error) {
	if consentCode == "" {
		return nil, nil
	}

	form := url.Values{"code": {consentCode}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/v1/consent/exchange", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: consent exchange request: %v", autherr.ErrAuthExchangeFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.serviceToken)

	return s.do(req, "consent exchange")
}

func (s *EnrichmentSource) do(req *http.Request, op string) (Bag, error) {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.LogErrorWithFields("claims", "Enrichment service unreachable", map[string]any{
			"operation": op,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("%w: enrichment %s: %v", autherr.ErrAuthExchangeFailed, op, err)
	}
	defer resp.Body.Close()

	// An unknown profile is a normal outcome, not a failure.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.LogErrorWithFields("claims", "Enrichment service returned error", map[string]any{
			"operation": op,
			"status":    resp.StatusCode,
			"body":      string(body),
		})
		return nil, fmt.Errorf("%w: enrichment %s status %d", autherr.ErrAuthExchangeFailed, op, resp.StatusCode)
	}

	var bag Bag
	if err := json.NewDecoder(resp.Body).Decode(&bag); err != nil {
		return nil, fmt.Errorf("%w: enrichment %s decode: %v", autherr.ErrAuthExchangeFailed, op, err)
	}
	return bag, nil
}
