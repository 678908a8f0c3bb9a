package cookie

import (
	"net/http"
	"time"

	"github.com/bordkit/auth-front/internal/envutil"
)

// StateCookie carries the signed sign-in state between the initiation
// redirect and the provider callback.
const StateCookie = "auth_front_state"

// SetState sets the state cookie with appropriate security settings.
// SameSite is Lax so the cookie survives the cross-site redirect back
// from the identity provider.
func SetState(w http.ResponseWriter, value string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(maxAge.Seconds()),
	})
}

// ClearState removes the state cookie. Called on every verification
// attempt, success or failure, so a state token is consumable only once.
func ClearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   StateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}

// GetState retrieves the state cookie value from the request
func GetState(r *http.Request) (string, error) {
	c, err := r.Cookie(StateCookie)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
