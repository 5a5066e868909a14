package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efisher/swapreview/internal/application"
	"github.com/efisher/swapreview/internal/domain/model"
	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// fakeCredStore is an in-memory CredentialStore.
type fakeCredStore struct {
	mu    sync.Mutex
	creds map[string]model.Credential // key: user|scope
	err   error
}

func newFakeCredStore() *fakeCredStore {
	return &fakeCredStore{creds: make(map[string]model.Credential)}
}

func (s *fakeCredStore) Put(_ context.Context, cred model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.creds[cred.User+"|"+cred.Scope] = cred
	return nil
}

func (s *fakeCredStore) Get(_ context.Context, user, scope string) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	cred, ok := s.creds[user+"|"+scope]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

// fakeIdentity counts refresh calls and returns a configured grant or error.
type fakeIdentity struct {
	mu    sync.Mutex
	calls int
	grant driven.TokenGrant
	err   error
}

func (c *fakeIdentity) Refresh(_ context.Context, _ string) (driven.TokenGrant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return driven.TokenGrant{}, c.err
	}
	return c.grant, nil
}

func (c *fakeIdentity) refreshCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

var testNow = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func seedCredential(t *testing.T, store *fakeCredStore, expiresAt time.Time) {
	t.Helper()
	err := store.Put(context.Background(), model.Credential{
		User:      "alice",
		Scope:     "install-1",
		Access:    "ghu_current",
		Refresh:   "ghr_current",
		ExpiresAt: expiresAt,
	})
	require.NoError(t, err)
}

func TestGetValidAccess_MissingCredential(t *testing.T) {
	svc := application.NewCredentialService(newFakeCredStore(), &fakeIdentity{})

	_, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.ErrorIs(t, err, driven.ErrNotAuthorized)
}

func TestGetValidAccess_FreshCredentialNoRefresh(t *testing.T) {
	store := newFakeCredStore()
	identity := &fakeIdentity{}
	svc := application.NewCredentialServiceWithClock(store, identity, fixedClock)

	// 10 minutes of validity left: comfortably outside the 5 minute margin.
	seedCredential(t, store, testNow.Add(10*time.Minute))

	access, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.NoError(t, err)
	assert.Equal(t, "ghu_current", access)
	assert.Equal(t, 0, identity.refreshCalls())
}

func TestGetValidAccess_NearExpiryTriggersOneRefresh(t *testing.T) {
	store := newFakeCredStore()
	identity := &fakeIdentity{grant: driven.TokenGrant{
		AccessToken:  "ghu_new",
		RefreshToken: "ghr_new",
		ExpiresIn:    8 * time.Hour,
	}}
	svc := application.NewCredentialServiceWithClock(store, identity, fixedClock)

	// 4 minutes left: inside the 5 minute margin.
	seedCredential(t, store, testNow.Add(4*time.Minute))

	access, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.NoError(t, err)
	assert.Equal(t, "ghu_new", access)
	assert.Equal(t, 1, identity.refreshCalls())

	// The new expiry derives from the grant's reported lifetime.
	cred, err := store.Get(context.Background(), "alice", "install-1")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "ghu_new", cred.Access)
	assert.Equal(t, "ghr_new", cred.Refresh)
	assert.True(t, cred.ExpiresAt.Equal(testNow.Add(8*time.Hour)))
}

func TestGetValidAccess_RetainsOldRefreshTokenWhenNotRotated(t *testing.T) {
	store := newFakeCredStore()
	identity := &fakeIdentity{grant: driven.TokenGrant{
		AccessToken: "ghu_new",
		ExpiresIn:   time.Hour,
	}}
	svc := application.NewCredentialServiceWithClock(store, identity, fixedClock)

	seedCredential(t, store, testNow.Add(time.Minute))

	_, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.NoError(t, err)

	cred, err := store.Get(context.Background(), "alice", "install-1")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "ghr_current", cred.Refresh)
}

func TestGetValidAccess_RefreshFailureIsNotAuthorized(t *testing.T) {
	store := newFakeCredStore()
	identity := &fakeIdentity{err: errors.New("identity provider down")}
	svc := application.NewCredentialServiceWithClock(store, identity, fixedClock)

	seedCredential(t, store, testNow.Add(time.Minute))

	_, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.ErrorIs(t, err, driven.ErrNotAuthorized)
}

func TestGetValidAccess_ExpiredCredentialRefreshes(t *testing.T) {
	store := newFakeCredStore()
	identity := &fakeIdentity{grant: driven.TokenGrant{
		AccessToken: "ghu_new",
		ExpiresIn:   time.Hour,
	}}
	svc := application.NewCredentialServiceWithClock(store, identity, fixedClock)

	seedCredential(t, store, testNow.Add(-time.Hour))

	access, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.NoError(t, err)
	assert.Equal(t, "ghu_new", access)
	assert.Equal(t, 1, identity.refreshCalls())
}

func TestGetValidAccess_DisabledStoreIsNotAuthorized(t *testing.T) {
	store := newFakeCredStore()
	store.err = driven.ErrEncryptionKeyNotSet
	svc := application.NewCredentialService(store, &fakeIdentity{})

	_, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.ErrorIs(t, err, driven.ErrNotAuthorized)
}

func TestGetValidAccess_StorageErrorPropagates(t *testing.T) {
	store := newFakeCredStore()
	store.err = errors.New("disk on fire")
	svc := application.NewCredentialService(store, &fakeIdentity{})

	_, err := svc.GetValidAccess(context.Background(), "alice", "install-1")
	require.Error(t, err)
	require.NotErrorIs(t, err, driven.ErrNotAuthorized)
}
