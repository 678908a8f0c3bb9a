package provision

import (
	"context"

	"github.com/google/uuid"

	"github.com/bordkit/auth-front/internal/log"
)

// StubProvisioner is the development fallback used when no provisioning
// service is configured. It derives stable identifiers from the identity so
// repeated sign-ins land in the same user and team.
type StubProvisioner struct{}

var _ Provisioner = (*StubProvisioner)(nil)

func (StubProvisioner) Provision(_ context.Context, req *Request) (*Result, error) {
	userID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("user:"+req.User.Email)).String()
	teamID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("team:"+req.Team.Domain)).String()

	log.LogWarnWithFields("provision", "Using stub provisioner", map[string]any{
		"user": req.User.Email,
		"team": req.Team.Domain,
	})

	return &Result{
		UserID:   userID,
		TeamID:   teamID,
		TeamName: req.Team.Name,
	}, nil
}
