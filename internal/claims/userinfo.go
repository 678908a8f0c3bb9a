package claims

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/log"
)

// BearerClientFunc builds an HTTP client that attaches the given access
// token to outbound requests. Satisfied by idp.Client.HTTPClient.
type BearerClientFunc func(ctx context.Context, accessToken string) *http.Client

// UserInfoSource fetches the provider's user-info endpoint. The endpoint
// URL may be configured statically or discovered per callback.
type UserInfoSource struct {
	overrideURL  string
	bearerClient BearerClientFunc
}

// NewUserInfoSource creates a user-info source. overrideURL may be empty;
// the endpoint then comes from OIDC discovery at resolution time.
func NewUserInfoSource(overrideURL string, bearerClient BearerClientFunc) *UserInfoSource {
	return &UserInfoSource{overrideURL: overrideURL, bearerClient: bearerClient}
}

// Endpoint selects the URL to consult: an explicitly configured endpoint
// wins over the discovered one. Empty means the provider exposes no
// user-info endpoint and the source is skipped.
func (s *UserInfoSource) Endpoint(discovered string) string {
	if s == nil {
		return ""
	}
	if s.overrideURL != "" {
		return s.overrideURL
	}
	return discovered
}

// Fetch retrieves the raw user-info claim bag from url. Any transport
// failure or non-success status is ErrAuthExchangeFailed.
func (s *UserInfoSource) Fetch(ctx context.Context, url, accessToken string) (Bag, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: user-info request: %v", autherr.ErrAuthExchangeFailed, err)
	}

	resp, err := s.bearerClient(ctx, accessToken).Do(req)
	if err != nil {
		log.LogErrorWithFields("claims", "User-info request failed", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("%w: user-info request: %v", autherr.ErrAuthExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.LogErrorWithFields("claims", "User-info endpoint returned error", map[string]any{
			"url":    url,
			"status": resp.StatusCode,
			"body":   string(body),
		})
		return nil, fmt.Errorf("%w: user-info status %d", autherr.ErrAuthExchangeFailed, resp.StatusCode)
	}

	var bag Bag
	if err := json.NewDecoder(resp.Body).Decode(&bag); err != nil {
		return nil, fmt.Errorf("%w: user-info decode: %v", autherr.ErrAuthExchangeFailed, err)
	}
	return bag, nil
}
