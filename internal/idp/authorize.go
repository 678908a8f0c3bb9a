package idp

import (
	"slices"

	"golang.org/x/oauth2"

	"github.com/bordkit/auth-front/internal/crypto"
)

// BuildAuthorizeURL constructs the redirect to the provider's authorization
// endpoint. The openid scope is always requested and always first; extras
// are de-duplicated against it and each other. A non-empty pkceVerifier
// attaches its S256 challenge; the verifier itself travels only inside the
// state token, never in the URL.
func (c *Client) BuildAuthorizeURL(endpoints Endpoints, state, pkceVerifier string) string {
	scopes := []string{"openid"}
	for _, s := range c.provider.ExtraScopes() {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}

	conf := c.oauthConfig(endpoints, scopes)

	var opts []oauth2.AuthCodeOption
	if pkceVerifier != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", crypto.ChallengeS256(pkceVerifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}

	return conf.AuthCodeURL(state, opts...)
}
