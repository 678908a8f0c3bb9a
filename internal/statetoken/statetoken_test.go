package statetoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bordkit/auth-front/internal/autherr"
)

var testKey = []byte("test-signing-key-32-bytes-long!!")

func TestIssueVerifyRoundTrip(t *testing.T) {
	codec := NewCodec(testKey, 5*time.Minute)

	nonce, cookieValue, err := codec.Issue(Context{
		PKCEVerifier:  "verifier-123",
		OriginHost:    "app.example.com",
		ClientVariant: VariantDesktop,
	})
	require.NoError(t, err)
	require.NotEmpty(t, nonce)
	require.NotEmpty(t, cookieValue)

	ctx, err := codec.Verify(cookieValue, nonce)
	require.NoError(t, err)
	assert.Equal(t, nonce, ctx.Nonce)
	assert.Equal(t, "verifier-123", ctx.PKCEVerifier)
	assert.Equal(t, "app.example.com", ctx.OriginHost)
	assert.Equal(t, VariantDesktop, ctx.ClientVariant)
}

func TestVerifyRejections(t *testing.T) {
	codec := NewCodec(testKey, 5*time.Minute)

	nonce, cookieValue, err := codec.Issue(Context{ClientVariant: VariantWeb})
	require.NoError(t, err)

	tests := []struct {
		name          string
		cookieValue   string
		returnedState string
	}{
		{"missing cookie", "", nonce},
		{"missing state param", cookieValue, ""},
		{"mismatched nonce", cookieValue, "some-other-state"},
		{"tampered cookie", cookieValue + "x", nonce},
		{"garbage cookie", "garbage", nonce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Verify(tt.cookieValue, tt.returnedState)
			assert.ErrorIs(t, err, autherr.ErrStateMismatch)
		})
	}
}

func TestVerifyExpired(t *testing.T) {
	codec := NewCodec(testKey, -time.Second)

	nonce, cookieValue, err := codec.Issue(Context{ClientVariant: VariantWeb})
	require.NoError(t, err)

	// Expiry must be indistinguishable from forgery.
	_, err = codec.Verify(cookieValue, nonce)
	assert.ErrorIs(t, err, autherr.ErrStateMismatch)
}

func TestVerifyWrongKey(t *testing.T) {
	codec := NewCodec(testKey, 5*time.Minute)
	other := NewCodec([]byte("different-key-32-bytes-long!!!!!"), 5*time.Minute)

	nonce, cookieValue, err := codec.Issue(Context{ClientVariant: VariantWeb})
	require.NoError(t, err)

	_, err = other.Verify(cookieValue, nonce)
	assert.ErrorIs(t, err, autherr.ErrStateMismatch)
}

func TestNoncesAreUnique(t *testing.T) {
	codec := NewCodec(testKey, 5*time.Minute)

	a, _, err := codec.Issue(Context{})
	require.NoError(t, err)
	b, _, err := codec.Issue(Context{})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
