package idp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/log"
)

// TokenSet is the normalized result of a code exchange. It lives only for
// the duration of one callback and is never persisted.
type TokenSet struct {
	AccessToken   string
	RefreshToken  string
	ExpiresIn     int64
	Scope         string
	IDTokenClaims map[string]any
}

// Client performs outbound calls against one configured provider.
type Client struct {
	provider    *config.Provider
	redirectURI string
	httpClient  *http.Client
}

// NewClient creates a provider client. redirectURI is the absolute callback
// URL registered with the provider.
func NewClient(provider *config.Provider, redirectURI string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		provider:    provider,
		redirectURI: redirectURI,
		httpClient:  httpClient,
	}
}

func (c *Client) oauthConfig(endpoints Endpoints, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.provider.ClientID,
		ClientSecret: string(c.provider.ClientSecret),
		RedirectURL:  c.redirectURI,
		Scopes:       scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  endpoints.AuthorizationURL,
			TokenURL: endpoints.TokenURL,
		},
	}
}

// HTTPClient returns the underlying transport, with the given token attached
// as a bearer credential. Used by the claims layer for user-info calls.
func (c *Client) HTTPClient(ctx context.Context, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	return oauth2.NewClient(ctx, src)
}

// Exchange trades an authorization code for tokens. Codes are single-use on
// the provider side, so a failed exchange is terminal; there are no retries.
// Any transport failure, non-success status, or a success response without
// an access token is ErrAuthExchangeFailed.
func (c *Client) Exchange(ctx context.Context, endpoints Endpoints, code, pkceVerifier string) (*TokenSet, error) {
	conf := c.oauthConfig(endpoints, nil)

	var opts []oauth2.AuthCodeOption
	if pkceVerifier != "" {
		opts = append(opts, oauth2.SetAuthURLParam("code_verifier", pkceVerifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := conf.Exchange(ctx, code, opts...)
	if err != nil {
		fields := map[string]any{
			"provider": c.provider.Name,
			"error":    err.Error(),
		}
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			// Error bodies carry no tokens; success bodies are never logged.
			fields["status"] = retrieveErr.Response.StatusCode
			fields["body"] = string(retrieveErr.Body)
		}
		log.LogErrorWithFields("idp", "Token exchange failed", fields)
		return nil, fmt.Errorf("%w: token exchange: %v", autherr.ErrAuthExchangeFailed, err)
	}

	if token.AccessToken == "" {
		log.LogErrorWithFields("idp", "Token response missing access_token", map[string]any{
			"provider": c.provider.Name,
		})
		return nil, fmt.Errorf("%w: token response missing access_token", autherr.ErrAuthExchangeFailed)
	}

	set := &TokenSet{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	}
	if !token.Expiry.IsZero() {
		set.ExpiresIn = int64(time.Until(token.Expiry).Seconds())
	}
	if scope, ok := token.Extra("scope").(string); ok {
		set.Scope = scope
	}
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		set.IDTokenClaims = decodeIDTokenClaims(rawIDToken)
	}

	return set, nil
}

// decodeIDTokenClaims extracts the ID token payload without signature
// verification. The token arrives directly from the token endpoint over
// TLS, so its integrity is already established by the channel; the claims
// here are only a fallback data source for identity resolution.
func decodeIDTokenClaims(rawIDToken string) map[string]any {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawIDToken, claims); err != nil {
		log.LogWarnWithFields("idp", "Failed to decode ID token payload", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return map[string]any(claims)
}
