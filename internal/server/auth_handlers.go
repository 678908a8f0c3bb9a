package server

import (
	"net/http"
	"strings"

	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/flow"
	"github.com/bordkit/auth-front/internal/log"
	"github.com/bordkit/auth-front/internal/statetoken"
)

// CallbackSuffix completes the provider segment of the callback path, e.g.
// /auth/okta.callback.
const CallbackSuffix = ".callback"

// AuthHandlers exposes the sign-in endpoints for one configured provider.
type AuthHandlers struct {
	cfg  *config.Config
	orch *flow.Orchestrator
}

// NewAuthHandlers creates the sign-in handler set.
func NewAuthHandlers(cfg *config.Config, orch *flow.Orchestrator) *AuthHandlers {
	return &AuthHandlers{cfg: cfg, orch: orch}
}

// Register mounts the sign-in routes on mux. Initiation and callback share
// one path segment; the callback carries the ".callback" suffix, so both
// are served through a single wildcard.
func (h *AuthHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/{target}", h.route)
	mux.HandleFunc("POST /auth/{target}", h.route)
}

// route dispatches /auth/{provider} and /auth/{provider}.callback.
// Initiation is GET only; the callback accepts GET and form POST.
func (h *AuthHandlers) route(w http.ResponseWriter, r *http.Request) {
	name, isCallback := strings.CutSuffix(r.PathValue("target"), CallbackSuffix)
	if !h.knownProvider(w, r, name) {
		return
	}

	switch {
	case isCallback:
		h.orch.HandleCallback(w, r)
	case r.Method == http.MethodGet:
		h.beginSignIn(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// beginSignIn starts the flow: GET /auth/{provider}?client=desktop&team=t1
func (h *AuthHandlers) beginSignIn(w http.ResponseWriter, r *http.Request) {
	variant := statetoken.VariantWeb
	if r.URL.Query().Get("client") == "desktop" {
		variant = statetoken.VariantDesktop
	}

	h.orch.Begin(w, r, flow.BeginOptions{
		Variant: variant,
		TeamID:  r.URL.Query().Get("team"),
	})
}

func (h *AuthHandlers) knownProvider(w http.ResponseWriter, r *http.Request, name string) bool {
	if name == h.cfg.Provider.Name {
		return true
	}
	log.LogWarnWithFields("server", "Unknown provider requested", map[string]any{
		"provider": name,
	})
	http.NotFound(w, r)
	return false
}
