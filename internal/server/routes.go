package server

import (
	"net/http"

	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/flow"
)

// BuildHandler assembles the full routing table.
func BuildHandler(cfg *config.Config, orch *flow.Orchestrator) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/health", NewHealthHandler())
	NewAuthHandlers(cfg, orch).Register(mux)

	return ChainMiddleware(mux,
		NewSecurityHeadersMiddleware(),
		NewLoggingMiddleware(),
	)
}
