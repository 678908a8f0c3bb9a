// Package idp talks to the external identity provider: it builds the
// authorization redirect and performs the code-for-token exchange.
package idp

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/sync/singleflight"

	"github.com/bordkit/auth-front/internal/config"
)

// Endpoints are the three provider URLs the flow needs.
type Endpoints struct {
	AuthorizationURL string
	TokenURL         string
	UserInfoURL      string
}

// EndpointResolver yields provider endpoints, either directly from
// configuration or via OIDC discovery. Discovery results are cached for the
// process lifetime; concurrent callbacks share a single discovery fetch.
type EndpointResolver struct {
	issuer     string
	direct     Endpoints
	httpClient *http.Client

	group  singleflight.Group
	mu     sync.RWMutex
	cached *Endpoints
}

// NewEndpointResolver builds a resolver from the provider configuration.
func NewEndpointResolver(p *config.Provider, httpClient *http.Client) *EndpointResolver {
	return &EndpointResolver{
		issuer: p.Issuer,
		direct: Endpoints{
			AuthorizationURL: p.AuthorizationURL,
			TokenURL:         p.TokenURL,
			UserInfoURL:      p.UserInfoURL,
		},
		httpClient: httpClient,
	}
}

// Resolve returns the provider endpoints, running OIDC discovery on first
// use when an issuer is configured.
func (r *EndpointResolver) Resolve(ctx context.Context) (Endpoints, error) {
	if r.issuer == "" {
		return r.direct, nil
	}

	r.mu.RLock()
	cached := r.cached
	r.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	v, err, _ := r.group.Do(r.issuer, func() (any, error) {
		return r.discover(ctx)
	})
	if err != nil {
		return Endpoints{}, err
	}

	eps := v.(Endpoints)
	r.mu.Lock()
	r.cached = &eps
	r.mu.Unlock()
	return eps, nil
}

func (r *EndpointResolver) discover(ctx context.Context) (Endpoints, error) {
	if r.httpClient != nil {
		ctx = gooidc.ClientContext(ctx, r.httpClient)
	}

	provider, err := gooidc.NewProvider(ctx, r.issuer)
	if err != nil {
		return Endpoints{}, fmt.Errorf("failed to fetch OIDC discovery for %s: %w", r.issuer, err)
	}

	// The userinfo endpoint is not part of go-oidc's typed surface; pull it
	// out of the raw discovery claims.
	var doc struct {
		UserInfoEndpoint string `json:"userinfo_endpoint"`
	}
	if err := provider.Claims(&doc); err != nil {
		return Endpoints{}, fmt.Errorf("failed to decode discovery document: %w", err)
	}

	endpoint := provider.Endpoint()
	eps := Endpoints{
		AuthorizationURL: endpoint.AuthURL,
		TokenURL:         endpoint.TokenURL,
		UserInfoURL:      doc.UserInfoEndpoint,
	}
	if eps.AuthorizationURL == "" || eps.TokenURL == "" {
		return Endpoints{}, fmt.Errorf("discovery document for %s is missing required endpoints", r.issuer)
	}
	return eps, nil
}
