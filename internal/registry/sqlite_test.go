package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), "file::memory:?cache=shared&_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	reg := &Registration{
		TeamID:     "team-1",
		Provider:   "okta",
		ProviderID: "pid-1",
		Domain:     "example.com",
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, store.Upsert(ctx, reg))

	got, err := store.FindByDomain(ctx, "team-1", "okta", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "pid-1", got.ProviderID)
	assert.Equal(t, "example.com", got.Domain)

	_, err = store.FindByDomain(ctx, "team-1", "okta", "missing.com")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)
}

func TestSQLiteStoreUpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	reg := &Registration{TeamID: "team-1", Provider: "okta", ProviderID: "pid-1", Domain: "example.com"}
	require.NoError(t, store.Upsert(ctx, reg))

	reg.ProviderID = "pid-2"
	require.NoError(t, store.Upsert(ctx, reg))

	got, err := store.FindByDomain(ctx, "team-1", "okta", "example.com")
	require.NoError(t, err)
	assert.Equal(t, "pid-2", got.ProviderID)
}

func TestSQLiteStoreFindAny(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	_, err := store.FindAny(ctx, "team-1", "okta")
	assert.ErrorIs(t, err, ErrRegistrationNotFound)

	require.NoError(t, store.Upsert(ctx, &Registration{
		TeamID: "team-1", Provider: "okta", ProviderID: "older", Domain: "a.com",
		CreatedAt: time.Now().Add(-time.Hour).UTC(),
	}))
	require.NoError(t, store.Upsert(ctx, &Registration{
		TeamID: "team-1", Provider: "okta", ProviderID: "newer", Domain: "b.com",
		CreatedAt: time.Now().UTC(),
	}))

	got, err := store.FindAny(ctx, "team-1", "okta")
	require.NoError(t, err)
	assert.Equal(t, "newer", got.ProviderID)
}
