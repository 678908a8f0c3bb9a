// Package statetoken implements the signed, short-lived token that protects
// the sign-in round trip. The token is held only by the client in a cookie;
// nothing is persisted server-side.
package statetoken

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/crypto"
	"github.com/bordkit/auth-front/internal/log"
)

// ClientVariant distinguishes web and desktop sign-ins; it alters the
// redirect scheme on completion and failure.
type ClientVariant string

const (
	VariantWeb     ClientVariant = "web"
	VariantDesktop ClientVariant = "desktop"
)

// Context is the payload signed into the state cookie.
type Context struct {
	Nonce         string        `json:"nonce"`
	PKCEVerifier  string        `json:"pkce_verifier,omitempty"`
	OriginHost    string        `json:"origin_host"`
	ClientVariant ClientVariant `json:"client_variant"`
	TeamID        string        `json:"team_id,omitempty"`
}

// Codec issues and verifies state tokens. The zero value is unusable;
// construct with NewCodec.
type Codec struct {
	signer crypto.TokenSigner
}

// NewCodec creates a codec signing with the given key and TTL.
func NewCodec(signingKey []byte, ttl time.Duration) Codec {
	return Codec{signer: crypto.NewTokenSigner(signingKey, ttl)}
}

// Issue creates a fresh nonce, embeds it together with ctx into a signed
// cookie value, and returns both. The nonce doubles as the OAuth state
// parameter sent to the provider.
func (c *Codec) Issue(ctx Context) (nonce, cookieValue string, err error) {
	nonce, err = crypto.GenerateSecureToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ctx.Nonce = nonce

	cookieValue, err = c.signer.Sign(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign state token: %w", err)
	}
	return nonce, cookieValue, nil
}

// Verify validates the cookie value and compares the returned state
// parameter against the signed-in nonce in constant time. Forged, corrupted,
// and expired tokens all collapse into the same ErrStateMismatch so the
// failure mode tells an attacker nothing.
func (c *Codec) Verify(cookieValue, returnedState string) (*Context, error) {
	if cookieValue == "" || returnedState == "" {
		return nil, autherr.ErrStateMismatch
	}

	var ctx Context
	if err := c.signer.Verify(cookieValue, &ctx); err != nil {
		log.LogDebugWithFields("statetoken", "State cookie rejected", map[string]any{
			"reason": err.Error(),
		})
		return nil, autherr.ErrStateMismatch
	}

	if subtle.ConstantTimeCompare([]byte(ctx.Nonce), []byte(returnedState)) != 1 {
		return nil, autherr.ErrStateMismatch
	}

	return &ctx, nil
}
