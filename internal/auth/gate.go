// ABOUTME: Per-request authentication gate for bearer tokens
// ABOUTME: Resolves identity or rejects with an internally distinguishable reason

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/store"
)

// Reason explains why the gate rejected a request.
type Reason int

const (
	ReasonMalformedHeader Reason = iota + 1
	ReasonInvalidToken
	ReasonRevoked
	ReasonUnknownSubject
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformedHeader:
		return "malformed_header"
	case ReasonInvalidToken:
		return "invalid_token"
	case ReasonRevoked:
		return "revoked"
	case ReasonUnknownSubject:
		return "unknown_subject"
	default:
		return "unknown"
	}
}

// RejectionError is returned when a request fails authentication. Err keeps
// the underlying cause, e.g. ErrExpiredToken vs ErrInvalidToken.
type RejectionError struct {
	Reason Reason
	Err    error
}

func (e *RejectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication rejected (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication rejected (%s)", e.Reason)
}

func (e *RejectionError) Unwrap() error {
	return e.Err
}

// Status maps the rejection to HTTP: 400 for a malformed header, 401 for
// everything else.
func (e *RejectionError) Status() int {
	if e.Reason == ReasonMalformedHeader {
		return http.StatusBadRequest
	}
	return http.StatusUnauthorized
}

// Message is the client-facing text. All 401 reasons share one message.
func (e *RejectionError) Message() string {
	if e.Reason == ReasonMalformedHeader {
		return "missing or malformed authorization header"
	}
	return "unauthorized"
}

// UserLookup resolves a token subject to an account.
type UserLookup interface {
	GetUserByUsername(ctx context.Context, username string) (*store.User, error)
}

var errMissingHeader = errors.New("missing authorization header")

// ExtractBearerToken returns the token from an Authorization header of the
// form "Bearer <token>".
func ExtractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", &RejectionError{Reason: ReasonMalformedHeader, Err: errMissingHeader}
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", &RejectionError{Reason: ReasonMalformedHeader, Err: errors.New("invalid authorization header format")}
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", &RejectionError{Reason: ReasonMalformedHeader, Err: errors.New("empty token")}
	}
	return token, nil
}

// Gate authenticates requests. It holds no per-request state.
type Gate struct {
	tokens      TokenVerifier
	revocations Revocations
	users       UserLookup
	logger      *slog.Logger
}

// NewGate creates a gate over the given token verifier, revocation list, and
// user lookup.
func NewGate(tokens TokenVerifier, revocations Revocations, users UserLookup, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		tokens:      tokens,
		revocations: revocations,
		users:       users,
		logger:      logger.With("component", "auth-gate"),
	}
}

// Authenticate runs the gate for one Authorization header value. It returns
// a *RejectionError when the caller is not authenticated, or an apperr error
// when a dependency failed.
func (g *Gate) Authenticate(ctx context.Context, authHeader string) (*Identity, error) {
	token, err := ExtractBearerToken(authHeader)
	if err != nil {
		return nil, err
	}

	username, err := g.tokens.Verify(token)
	if err != nil {
		return nil, &RejectionError{Reason: ReasonInvalidToken, Err: err}
	}

	revoked, err := g.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, apperr.E(apperr.KindUnavailable, "authentication unavailable", err)
	}
	if revoked {
		return nil, &RejectionError{Reason: ReasonRevoked}
	}

	user, err := g.users.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &RejectionError{Reason: ReasonUnknownSubject}
	}
	if err != nil {
		return nil, fmt.Errorf("looking up token subject: %w", err)
	}

	return &Identity{UserID: user.ID, Username: user.Username}, nil
}

// Middleware rejects unauthenticated requests and attaches the Identity to
// the context of authenticated ones.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := g.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			g.reject(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, err error) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		g.logger.Info("request rejected",
			"reason", rej.Reason.String(),
			"expired", errors.Is(rej.Err, ErrExpiredToken),
			"method", r.Method,
			"path", r.URL.Path,
		)
		writeJSONError(w, rej.Status(), rej.Message())
		return
	}

	g.logger.Error("authentication failed", "error", err, "path", r.URL.Path)
	writeJSONError(w, apperr.Status(err), apperr.Message(err))
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
