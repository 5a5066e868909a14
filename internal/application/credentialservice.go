package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/efisher/swapreview/internal/domain/model"
	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// refreshMargin is the lead time before expiry at which a credential is
// proactively refreshed. An access token handed to a caller is always valid
// for at least this long.
const refreshMargin = 5 * time.Minute

// AccessResolver resolves a usable access token for a user within a scope.
// Implemented by CredentialService; the engine depends on this interface so
// tests can substitute a fake.
type AccessResolver interface {
	GetValidAccess(ctx context.Context, user, scope string) (string, error)
}

// CredentialService owns the per-(user, scope) credential lifecycle: reading
// stored credentials, refreshing them synchronously when they approach
// expiry, and persisting the refreshed pair.
type CredentialService struct {
	store    driven.CredentialStore
	identity driven.IdentityClient
	now      func() time.Time
}

// NewCredentialService creates a CredentialService with the required
// dependencies.
func NewCredentialService(store driven.CredentialStore, identity driven.IdentityClient) *CredentialService {
	return &CredentialService{
		store:    store,
		identity: identity,
		now:      time.Now,
	}
}

// NewCredentialServiceWithClock creates a CredentialService with an injected
// clock. Intended for tests exercising the refresh boundary.
func NewCredentialServiceWithClock(store driven.CredentialStore, identity driven.IdentityClient, now func() time.Time) *CredentialService {
	return &CredentialService{
		store:    store,
		identity: identity,
		now:      now,
	}
}

// GetValidAccess returns an access token for (user, scope) valid for at
// least refreshMargin. A missing credential, a credential that cannot be
// refreshed, or a disabled credential store all yield
// driven.ErrNotAuthorized; the user recovers by re-authorizing, so upstream
// refresh failures never propagate. Only storage failures are returned as
// errors.
func (s *CredentialService) GetValidAccess(ctx context.Context, user, scope string) (string, error) {
	cred, err := s.store.Get(ctx, user, scope)
	if errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		slog.Warn("credential storage disabled, treating user as unauthorized", "user", user)
		return "", driven.ErrNotAuthorized
	}
	if err != nil {
		return "", fmt.Errorf("load credential for %q: %w", user, err)
	}
	if cred == nil {
		return "", driven.ErrNotAuthorized
	}

	if s.now().Before(cred.ExpiresAt.Add(-refreshMargin)) {
		return cred.Access, nil
	}

	grant, err := s.identity.Refresh(ctx, cred.Refresh)
	if err != nil {
		slog.Warn("credential refresh failed",
			"user", user,
			"scope", scope,
			"error", err,
		)
		return "", driven.ErrNotAuthorized
	}

	cred.Access = grant.AccessToken
	// The provider rotates the refresh token only sometimes; keep the old
	// one when no replacement is supplied.
	if grant.RefreshToken != "" {
		cred.Refresh = grant.RefreshToken
	}
	cred.ExpiresAt = s.now().Add(grant.ExpiresIn)

	if err := s.store.Put(ctx, *cred); err != nil {
		return "", fmt.Errorf("persist refreshed credential for %q: %w", user, err)
	}

	slog.Info("credential refreshed", "user", user, "scope", scope, "expires_at", cred.ExpiresAt)
	return cred.Access, nil
}

// Put stores a credential after the initial authorization handshake.
// Idempotent upsert.
func (s *CredentialService) Put(ctx context.Context, cred model.Credential) error {
	return s.store.Put(ctx, cred)
}
