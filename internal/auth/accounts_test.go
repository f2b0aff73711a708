// ABOUTME: Tests for registration, login, and logout
// ABOUTME: Logout must revoke a token that still verifies on its own

package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/notebox/internal/apperr"
)

func newTestAccounts(t *testing.T) (*Accounts, *gateFixture) {
	t.Helper()
	f := newGateFixture(t)
	return NewAccounts(f.users, f.tokens, f.revocations, nil), f
}

func TestAccounts_RegisterLoginSubject(t *testing.T) {
	accounts, f := newTestAccounts(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob", "chloé"} {
		user, err := accounts.Register(ctx, name, "pw-"+name)
		require.NoError(t, err)
		assert.NotEqual(t, "pw-"+name, user.PasswordHash, "password must be hashed")

		token, err := accounts.Login(ctx, name, "pw-"+name)
		require.NoError(t, err)

		sub, err := f.tokens.SubjectOf(token)
		require.NoError(t, err)
		assert.Equal(t, name, sub)
	}
}

func TestAccounts_RegisterValidation(t *testing.T) {
	accounts, _ := newTestAccounts(t)
	ctx := context.Background()

	_, err := accounts.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		password string
		wantMsg  string
	}{
		{"duplicate", "alice", "other", "username exists"},
		{"duplicate padded", "  alice ", "other", "username exists"},
		{"empty username", "", "pw", "username and password are required"},
		{"empty password", "bob", "", "username and password are required"},
		{"long username", strings.Repeat("x", MaxUsernameLength+1), "pw", "at most"},
		{"long password", "carol", strings.Repeat("p", 73), "72 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := accounts.Register(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Contains(t, apperr.Message(err), tt.wantMsg)
		})
	}
}

func TestAccounts_LoginFailuresLookAlike(t *testing.T) {
	accounts, _ := newTestAccounts(t)
	ctx := context.Background()
	_, err := accounts.Register(ctx, "alice", "secret")
	require.NoError(t, err)

	_, wrongPassword := accounts.Login(ctx, "alice", "wrong")
	_, unknownUser := accounts.Login(ctx, "mallory", "secret")

	assert.ErrorIs(t, wrongPassword, apperr.ErrAuth)
	assert.ErrorIs(t, unknownUser, apperr.ErrAuth)
	assert.Equal(t, apperr.Message(wrongPassword), apperr.Message(unknownUser))
}

func TestAccounts_LogoutRevokesToken(t *testing.T) {
	accounts, f := newTestAccounts(t)
	ctx := context.Background()
	_, err := accounts.Register(ctx, "alice", "secret")
	require.NoError(t, err)
	token, err := accounts.Login(ctx, "alice", "secret")
	require.NoError(t, err)

	_, err = f.gate.Authenticate(ctx, "Bearer "+token)
	require.NoError(t, err)

	require.NoError(t, accounts.Logout(ctx, "Bearer "+token))
	require.NoError(t, accounts.Logout(ctx, "Bearer "+token), "logout is idempotent")

	// Signature and expiry still check out on their own
	sub, err := f.tokens.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sub)

	_, err = f.gate.Authenticate(ctx, "Bearer "+token)
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonRevoked, rej.Reason)
}

func TestAccounts_LogoutRejections(t *testing.T) {
	accounts, f := newTestAccounts(t)
	ctx := context.Background()

	var rej *RejectionError
	err := accounts.Logout(ctx, "")
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonMalformedHeader, rej.Reason)

	err = accounts.Logout(ctx, "Bearer not-a-token")
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonInvalidToken, rej.Reason)

	// Expired tokens are accepted without being stored
	old := newTestTokens(t, time.Minute)
	old.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, err := old.Issue("alice")
	require.NoError(t, err)
	require.NoError(t, accounts.Logout(ctx, "Bearer "+expired))
	assert.Equal(t, 0, f.revocations.Len())
}

func TestAccounts_LogoutBackendDown(t *testing.T) {
	f := newGateFixture(t)
	accounts := NewAccounts(f.users, f.tokens, failingRevocations{}, nil)

	token, err := f.tokens.Issue("alice")
	require.NoError(t, err)

	err = accounts.Logout(context.Background(), "Bearer "+token)
	assert.ErrorIs(t, err, apperr.ErrUnavailable)
}
