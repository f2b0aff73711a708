// ABOUTME: Shared fakes for auth tests
// ABOUTME: In-memory credential store and a revocation list that can fail on demand

package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/2389/notebox/internal/store"
)

// fakeUsers is an in-memory CredentialStore.
type fakeUsers struct {
	mu     sync.Mutex
	byName map[string]*store.User
	nextID int64
	err    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byName: make(map[string]*store.User)}
}

func (f *fakeUsers) CreateUser(_ context.Context, username, passwordHash string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.byName[username]; ok {
		return nil, store.ErrUsernameExists
	}
	f.nextID++
	u := &store.User{ID: f.nextID, Username: username, PasswordHash: passwordHash, CreatedAt: time.Now()}
	f.byName[username] = u
	return u, nil
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byName[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

// failingRevocations always errors, standing in for an unreachable redis.
type failingRevocations struct{}

var errRevocationsDown = errors.New("revocations down")

func (failingRevocations) Revoke(context.Context, string, time.Time) error {
	return errRevocationsDown
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errRevocationsDown
}

func (failingRevocations) Close() error { return nil }
