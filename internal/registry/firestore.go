package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Ensure FirestoreStore implements the Store interface
var _ Store = (*FirestoreStore)(nil)

// FirestoreStore persists registrations in Google Cloud Firestore for
// multi-instance deployments. Reads return errors; the sign-in flow cannot
// proceed without registration data.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore connects to Firestore in the given project.
func NewFirestoreStore(ctx context.Context, projectID, collection string) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client, collection: collection}, nil
}

func (s *FirestoreStore) docID(teamID, provider, domain string) string {
	return teamID + "|" + provider + "|" + domain
}

func (s *FirestoreStore) FindByDomain(ctx context.Context, teamID, provider, domain string) (*Registration, error) {
	doc, err := s.client.Collection(s.collection).Doc(s.docID(teamID, provider, domain)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	var reg Registration
	if err := doc.DataTo(&reg); err != nil {
		return nil, fmt.Errorf("failed to decode registration: %w", err)
	}
	return &reg, nil
}

func (s *FirestoreStore) FindAny(ctx context.Context, teamID, provider string) (*Registration, error) {
	iter := s.client.Collection(s.collection).
		Where("team_id", "==", teamID).
		Where("provider", "==", provider).
		OrderBy("created_at", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query registrations: %w", err)
	}

	var reg Registration
	if err := doc.DataTo(&reg); err != nil {
		return nil, fmt.Errorf("failed to decode registration: %w", err)
	}
	return &reg, nil
}

func (s *FirestoreStore) Upsert(ctx context.Context, reg *Registration) error {
	stored := *reg
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	_, err := s.client.Collection(s.collection).
		Doc(s.docID(reg.TeamID, reg.Provider, reg.Domain)).
		Set(ctx, stored)
	if err != nil {
		return fmt.Errorf("failed to upsert registration: %w", err)
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
