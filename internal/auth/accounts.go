// ABOUTME: Account operations: registration, password login, and logout
// ABOUTME: Logout adds the presented token to the revocation list until it expires

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/store"
)

// MaxUsernameLength bounds usernames in runes.
const MaxUsernameLength = 64

// CredentialStore persists accounts. CreateUser must be an atomic
// create-if-absent returning store.ErrUsernameExists for a taken name.
type CredentialStore interface {
	UserLookup
	CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error)
}

// Accounts implements register, login, and logout.
type Accounts struct {
	users       CredentialStore
	tokens      *TokenService
	revocations Revocations
	logger      *slog.Logger
}

// NewAccounts creates the account service.
func NewAccounts(users CredentialStore, tokens *TokenService, revocations Revocations, logger *slog.Logger) *Accounts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accounts{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		logger:      logger.With("component", "accounts"),
	}
}

// Register creates an account. A taken username is a validation error.
func (a *Accounts) Register(ctx context.Context, username, password string) (*store.User, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperr.E(apperr.KindValidation, "password must be at most 72 bytes", err)
	}
	if err != nil {
		return nil, err
	}

	user, err := a.users.CreateUser(ctx, username, hash)
	if errors.Is(err, store.ErrUsernameExists) {
		return nil, apperr.E(apperr.KindValidation, "username exists", err)
	}
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	a.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func validateCredentials(username, password string) error {
	if username == "" || password == "" {
		return apperr.E(apperr.KindValidation, "username and password are required", nil)
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return apperr.E(apperr.KindValidation, fmt.Sprintf("username must be at most %d characters", MaxUsernameLength), nil)
	}
	return nil
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords fail identically.
func (a *Accounts) Login(ctx context.Context, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	invalid := apperr.E(apperr.KindAuth, "invalid username or password", nil)

	user, err := a.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		equalizeTiming(password)
		return "", invalid
	}
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}

	if !CheckPassword(user.PasswordHash, password) {
		a.logger.Info("login failed", "username", username)
		return "", invalid
	}

	token, err := a.tokens.Issue(user.Username)
	if err != nil {
		return "", err
	}

	a.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Logout revokes the bearer token in authHeader. A malformed header or a
// token with a bad signature is rejected; an expired token is accepted as a
// no-op since it can no longer authenticate.
func (a *Accounts) Logout(ctx context.Context, authHeader string) error {
	token, err := ExtractBearerToken(authHeader)
	if err != nil {
		return err
	}

	expiresAt, err := a.tokens.ExpiresAt(token)
	if err != nil {
		return &RejectionError{Reason: ReasonInvalidToken, Err: err}
	}
	if !a.tokens.now().Before(expiresAt) {
		return nil
	}

	if err := a.revocations.Revoke(ctx, token, expiresAt); err != nil {
		return apperr.E(apperr.KindUnavailable, "logout unavailable", err)
	}

	a.logger.Info("token revoked", "expires_at", expiresAt)
	return nil
}
