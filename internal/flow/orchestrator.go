// Package flow orchestrates the external-identity sign-in: issuing the
// state cookie, redirecting to the provider, and driving the callback
// through verification, token exchange, claims resolution, provisioning,
// and session establishment.
package flow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/claims"
	"github.com/bordkit/auth-front/internal/config"
	"github.com/bordkit/auth-front/internal/cookie"
	"github.com/bordkit/auth-front/internal/crypto"
	"github.com/bordkit/auth-front/internal/envutil"
	"github.com/bordkit/auth-front/internal/idp"
	"github.com/bordkit/auth-front/internal/log"
	"github.com/bordkit/auth-front/internal/provision"
	"github.com/bordkit/auth-front/internal/session"
	"github.com/bordkit/auth-front/internal/statetoken"
)

// State labels the stages a callback moves through. Used for logging and
// tests; the orchestrator never persists it.
type State string

const (
	StateInit               State = "init"
	StateIssued             State = "state_issued"
	StateVerified           State = "state_verified"
	StateTokensExchanged    State = "tokens_exchanged"
	StateClaimsResolved     State = "claims_resolved"
	StateProvisioned        State = "provisioned"
	StateSessionEstablished State = "session_established"
	StateFailed             State = "failed"
)

// BeginOptions carry the hints the initiation endpoint extracted from the
// request.
type BeginOptions struct {
	Variant statetoken.ClientVariant
	TeamID  string
}

// Orchestrator wires the sign-in stages together for one provider.
type Orchestrator struct {
	cfg       *config.Config
	codec     statetoken.Codec
	endpoints *idp.EndpointResolver
	client    *idp.Client
	resolver  *claims.Resolver
	bridge    *provision.Bridge
	session   session.Establisher
}

// New creates an orchestrator. All dependencies are required.
func New(
	cfg *config.Config,
	codec statetoken.Codec,
	endpoints *idp.EndpointResolver,
	client *idp.Client,
	resolver *claims.Resolver,
	bridge *provision.Bridge,
	establisher session.Establisher,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		codec:     codec,
		endpoints: endpoints,
		client:    client,
		resolver:  resolver,
		bridge:    bridge,
		session:   establisher,
	}
}

// Begin starts the flow: it issues the state cookie and redirects to the
// provider's authorization endpoint.
func (o *Orchestrator) Begin(w http.ResponseWriter, r *http.Request, opts BeginOptions) {
	endpoints, err := o.endpoints.Resolve(r.Context())
	if err != nil {
		o.fail(w, r, StateInit, statetoken.Context{OriginHost: r.Host, ClientVariant: opts.Variant}, err)
		return
	}

	var verifier string
	if o.cfg.Provider.UsePKCE {
		verifier, err = crypto.GenerateCodeVerifier()
		if err != nil {
			o.fail(w, r, StateInit, statetoken.Context{OriginHost: r.Host, ClientVariant: opts.Variant}, err)
			return
		}
	}

	stateCtx := statetoken.Context{
		PKCEVerifier:  verifier,
		OriginHost:    r.Host,
		ClientVariant: opts.Variant,
		TeamID:        opts.TeamID,
	}
	nonce, cookieValue, err := o.codec.Issue(stateCtx)
	if err != nil {
		o.fail(w, r, StateInit, stateCtx, err)
		return
	}

	cookie.SetState(w, cookieValue, o.cfg.StateTTL)

	authURL := o.client.BuildAuthorizeURL(endpoints, nonce, verifier)
	log.LogInfoWithFields("flow", "Sign-in started", map[string]any{
		"provider": o.cfg.Provider.Name,
		"variant":  string(opts.Variant),
		"pkce":     verifier != "",
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback drives the provider callback to completion. Providers
// deliver the callback as GET with query parameters or as a form POST; both
// are accepted.
func (o *Orchestrator) HandleCallback(w http.ResponseWriter, r *http.Request) {
	params := callbackParams(r)

	// The state cookie is one-shot: cleared before anything else so a
	// replayed callback cannot be verified twice.
	cookieValue, _ := cookie.GetState(r)
	cookie.ClearState(w)

	stateCtx, err := o.codec.Verify(cookieValue, params.state)
	if err != nil {
		// Verification failed before anything trustworthy was learned
		// about the request, so redirect defaults come from the request
		// itself and no outbound call is made.
		o.fail(w, r, StateInit, statetoken.Context{OriginHost: r.Host, ClientVariant: statetoken.VariantWeb}, err)
		return
	}

	if params.providerError != "" {
		log.LogWarnWithFields("flow", "Provider returned error", map[string]any{
			"error":       params.providerError,
			"description": params.errorDescription,
		})
		o.fail(w, r, StateVerified, *stateCtx,
			fmt.Errorf("%w: provider error %q", autherr.ErrAuthExchangeFailed, params.providerError))
		return
	}
	if params.code == "" {
		o.fail(w, r, StateVerified, *stateCtx,
			fmt.Errorf("%w: callback carried no authorization code", autherr.ErrAuthExchangeFailed))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), o.cfg.OutboundTimeout)
	defer cancel()

	endpoints, err := o.endpoints.Resolve(ctx)
	if err != nil {
		o.fail(w, r, StateVerified, *stateCtx, err)
		return
	}

	tokens, err := o.client.Exchange(ctx, endpoints, params.code, stateCtx.PKCEVerifier)
	if err != nil {
		o.fail(w, r, StateVerified, *stateCtx, err)
		return
	}

	identity, err := o.resolver.Resolve(ctx, claims.Input{
		AccessToken:   tokens.AccessToken,
		IDTokenClaims: tokens.IDTokenClaims,
		UserInfoURL:   endpoints.UserInfoURL,
		ConsentCode:   params.consentCode,
	})
	if err != nil {
		o.fail(w, r, StateTokensExchanged, *stateCtx, err)
		return
	}

	result, err := o.bridge.Provision(ctx, identity, tokens, provision.RequestContext{TeamID: stateCtx.TeamID})
	if err != nil {
		o.fail(w, r, StateClaimsResolved, *stateCtx, err)
		return
	}

	// The inbound request may have been abandoned while the outbound calls
	// ran; never establish a session nobody is waiting for.
	if r.Context().Err() != nil {
		log.LogWarnWithFields("flow", "Caller gone before session establishment", map[string]any{
			"user": result.UserID,
		})
		return
	}

	if err := o.session.Establish(w, r, result, stateCtx.ClientVariant); err != nil {
		o.fail(w, r, StateProvisioned, *stateCtx, err)
		return
	}

	log.LogInfoWithFields("flow", "Sign-in completed", map[string]any{
		"provider": o.cfg.Provider.Name,
		"user":     result.UserID,
		"team":     result.TeamID,
		"state":    string(StateSessionEstablished),
	})
}

type parsedCallback struct {
	code             string
	state            string
	consentCode      string
	providerError    string
	errorDescription string
}

func callbackParams(r *http.Request) parsedCallback {
	get := r.URL.Query().Get
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err == nil {
			get = r.Form.Get
		}
	}
	p := parsedCallback{
		code:             get("code"),
		state:            get("state"),
		consentCode:      get("consent"),
		providerError:    get("error"),
		errorDescription: get("error_description"),
	}
	// Providers running in consent mode deliver a single code that serves
	// both roles.
	if p.consentCode == "" {
		p.consentCode = p.code
	}
	return p
}

// fail logs the failure with its stage and redirects the user to a notice
// page. The notice code is the only error detail a user ever sees outside
// dev mode.
func (o *Orchestrator) fail(w http.ResponseWriter, r *http.Request, at State, stateCtx statetoken.Context, err error) {
	log.LogErrorWithFields("flow", "Sign-in failed", map[string]any{
		"provider": o.cfg.Provider.Name,
		"stage":    string(at),
		"kind":     string(autherr.ClassifyKind(err)),
		"error":    err.Error(),
	})
	http.Redirect(w, r, o.failureRedirect(stateCtx, err), http.StatusFound)
}

// failureRedirect builds the notice redirect. A ProvisioningError's own
// redirect preferences win over the defaults derived from the state token.
func (o *Orchestrator) failureRedirect(stateCtx statetoken.Context, err error) string {
	notice := autherr.NoticeCode(err)

	path := "/"
	host := stateCtx.OriginHost

	var provErr *autherr.ProvisioningError
	if errors.As(err, &provErr) {
		if provErr.RedirectPath != "" {
			path = provErr.RedirectPath
		}
		if provErr.RedirectHost != "" {
			host = provErr.RedirectHost
		}
	}

	q := url.Values{"notice": {notice}}
	if envutil.IsDev() {
		q.Set("error_detail", err.Error())
	}

	if stateCtx.ClientVariant == statetoken.VariantDesktop {
		return fmt.Sprintf("%s://sign-in-failed?%s", o.cfg.DesktopScheme, q.Encode())
	}

	target := url.URL{Path: path, RawQuery: q.Encode()}
	if host != "" && host != hostOf(o.cfg.BaseURL) {
		target.Scheme = schemeOf(o.cfg.BaseURL)
		target.Host = host
	}
	return target.String()
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func schemeOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "https"
	}
	if strings.HasPrefix(rawURL, "http://") {
		return "http"
	}
	return u.Scheme
}
