package provision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bordkit/auth-front/internal/autherr"
	"github.com/bordkit/auth-front/internal/log"
)

// HTTPProvisioner calls the account-provisioning service over HTTP. The
// service answers 200 with a Result, or a 4xx with a structured rejection
// that maps onto ProvisioningError.
type HTTPProvisioner struct {
	url          string
	serviceToken string
	httpClient   *http.Client
}

var _ Provisioner = (*HTTPProvisioner)(nil)

// NewHTTPProvisioner creates a client for the provisioning endpoint at url.
func NewHTTPProvisioner(url, serviceToken string, httpClient *http.Client) *HTTPProvisioner {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPProvisioner{
		url:          strings.TrimRight(url, "/"),
		serviceToken: serviceToken,
		httpClient:   httpClient,
	}
}

type wireRequest struct {
	Team struct {
		Name      string `json:"name"`
		Domain    string `json:"domain"`
		Subdomain string `json:"subdomain"`
		AvatarURL string `json:"avatar_url,omitempty"`
	} `json:"team"`
	User struct {
		Name      string `json:"name"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url,omitempty"`
		Language  string `json:"language,omitempty"`
	} `json:"user"`
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
	Auth       struct {
		ExternalSubjectID string `json:"external_subject_id"`
		AccessToken       string `json:"access_token"`
		RefreshToken      string `json:"refresh_token,omitempty"`
		Scope             string `json:"scope,omitempty"`
		ExpiresIn         int64  `json:"expires_in,omitempty"`
	} `json:"auth"`
}

type wireRejection struct {
	Notice       string `json:"notice"`
	RedirectPath string `json:"redirect_path"`
	RedirectHost string `json:"redirect_host"`
	Message      string `json:"message"`
}

func (p *HTTPProvisioner) Provision(ctx context.Context, req *Request) (*Result, error) {
	var body wireRequest
	body.Team.Name = req.Team.Name
	body.Team.Domain = req.Team.Domain
	body.Team.Subdomain = req.Team.Subdomain
	body.Team.AvatarURL = req.Team.AvatarURL
	body.User.Name = req.User.Name
	body.User.Email = req.User.Email
	body.User.AvatarURL = req.User.AvatarURL
	body.User.Language = req.User.Language
	body.Provider = req.Provider
	body.ProviderID = req.ProviderID
	body.Auth.ExternalSubjectID = req.Auth.ExternalSubjectID
	body.Auth.AccessToken = req.Auth.AccessToken
	body.Auth.RefreshToken = req.Auth.RefreshToken
	body.Auth.Scope = req.Auth.Scope
	body.Auth.ExpiresIn = req.Auth.ExpiresIn

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provisioning request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create provisioning request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.serviceToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.serviceToken)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &autherr.ProvisioningError{
			Notice: string(autherr.KindProvisioningError),
			Err:    fmt.Errorf("provisioning request failed: %w", err),
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var result Result
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, &autherr.ProvisioningError{
				Notice: string(autherr.KindProvisioningError),
				Err:    fmt.Errorf("failed to decode provisioning response: %w", err),
			}
		}
		if result.UserID == "" || result.TeamID == "" {
			return nil, &autherr.ProvisioningError{
				Notice: string(autherr.KindProvisioningError),
				Err:    fmt.Errorf("provisioning response missing user or team id"),
			}
		}
		return &result, nil

	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var rejection wireRejection
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(raw, &rejection); err != nil || rejection.Notice == "" {
			rejection.Notice = string(autherr.KindProvisioningError)
		}
		log.LogWarnWithFields("provision", "Provisioning rejected", map[string]any{
			"status": resp.StatusCode,
			"notice": rejection.Notice,
		})
		return nil, &autherr.ProvisioningError{
			Notice:       rejection.Notice,
			RedirectPath: rejection.RedirectPath,
			RedirectHost: rejection.RedirectHost,
			Err:          fmt.Errorf("provisioning rejected with status %d: %s", resp.StatusCode, rejection.Message),
		}

	default:
		return nil, &autherr.ProvisioningError{
			Notice: string(autherr.KindProvisioningError),
			Err:    fmt.Errorf("provisioning service returned status %d", resp.StatusCode),
		}
	}
}
