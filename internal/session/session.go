// Package session issues the application session after a successful
// sign-in. The orchestrator only sees the Establisher interface; the cookie
// implementation here is the default for deployments where auth-front owns
// the session itself.
package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bordkit/auth-front/internal/crypto"
	"github.com/bordkit/auth-front/internal/envutil"
	"github.com/bordkit/auth-front/internal/log"
	"github.com/bordkit/auth-front/internal/provision"
	"github.com/bordkit/auth-front/internal/statetoken"
)

// SessionCookie carries the signed application session
const SessionCookie = "bordkit_session"

// Establisher turns a provisioning result into a live session plus the
// final redirect.
type Establisher interface {
	Establish(w http.ResponseWriter, r *http.Request, result *provision.Result, variant statetoken.ClientVariant) error
}

// Claims is the session payload.
type Claims struct {
	UserID   string    `json:"user_id"`
	TeamID   string    `json:"team_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// CookieEstablisher signs a session cookie and redirects into the
// application. Desktop sign-ins are redirected to a custom-scheme deep link
// instead; the desktop client picks the session token out of the link.
type CookieEstablisher struct {
	signer        crypto.TokenSigner
	ttl           time.Duration
	desktopScheme string
}

// NewCookieEstablisher creates the default establisher.
func NewCookieEstablisher(signingKey []byte, ttl time.Duration, desktopScheme string) *CookieEstablisher {
	return &CookieEstablisher{
		signer:        crypto.NewTokenSigner(signingKey, ttl),
		ttl:           ttl,
		desktopScheme: desktopScheme,
	}
}

func (e *CookieEstablisher) Establish(w http.ResponseWriter, r *http.Request, result *provision.Result, variant statetoken.ClientVariant) error {
	token, err := e.signer.Sign(Claims{
		UserID:   result.UserID,
		TeamID:   result.TeamID,
		IssuedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to sign session: %w", err)
	}

	log.LogInfoWithFields("session", "Session established", map[string]any{
		"user":    result.UserID,
		"team":    result.TeamID,
		"variant": string(variant),
	})

	if variant == statetoken.VariantDesktop {
		// The desktop client registered the custom scheme; the token rides
		// in the deep link instead of a cookie.
		target := fmt.Sprintf("%s://signed-in?token=%s", e.desktopScheme, token)
		http.Redirect(w, r, target, http.StatusFound)
		return nil
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(e.ttl.Seconds()),
	})
	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}

// Verify validates a session token and returns its claims. Used by
// downstream middleware, not by the sign-in flow itself.
func (e *CookieEstablisher) Verify(token string) (*Claims, error) {
	var claims Claims
	if err := e.signer.Verify(token, &claims); err != nil {
		return nil, fmt.Errorf("invalid session: %w", err)
	}
	return &claims, nil
}
