package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/efisher/swapreview/internal/domain/model"
	"github.com/efisher/swapreview/internal/domain/port/driven"
)

func TestCredentialRepo_PutAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	expires := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	err := repo.Put(ctx, model.Credential{
		User:      "alice",
		Scope:     "install-1",
		Access:    "ghu_access",
		Refresh:   "ghr_refresh",
		ExpiresAt: expires,
	})
	require.NoError(t, err)

	cred, err := repo.Get(ctx, "alice", "install-1")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "ghu_access", cred.Access)
	assert.Equal(t, "ghr_refresh", cred.Refresh)
	assert.True(t, cred.ExpiresAt.Equal(expires))
	assert.False(t, cred.UpdatedAt.IsZero())
}

func TestCredentialRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	cred, err := repo.Get(ctx, "nobody", "install-1")
	require.NoError(t, err)
	assert.Nil(t, cred)
}

func TestCredentialRepo_PutUpserts(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	err := repo.Put(ctx, model.Credential{
		User: "alice", Scope: "install-1",
		Access: "old-access", Refresh: "old-refresh",
		ExpiresAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	err = repo.Put(ctx, model.Credential{
		User: "alice", Scope: "install-1",
		Access: "new-access", Refresh: "new-refresh",
		ExpiresAt: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	cred, err := repo.Get(ctx, "alice", "install-1")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "new-access", cred.Access)
	assert.Equal(t, "new-refresh", cred.Refresh)
}

func TestCredentialRepo_ScopesAreIndependent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	err := repo.Put(ctx, model.Credential{
		User: "alice", Scope: "install-1",
		Access: "one", Refresh: "r1",
		ExpiresAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	err = repo.Put(ctx, model.Credential{
		User: "alice", Scope: "install-2",
		Access: "two", Refresh: "r2",
		ExpiresAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	cred, err := repo.Get(ctx, "alice", "install-2")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "two", cred.Access)
}

func TestCredentialRepo_NilKeyDisablesStorage(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, nil)
	ctx := context.Background()

	err := repo.Put(ctx, model.Credential{User: "alice", Scope: "install-1"})
	require.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)

	_, err = repo.Get(ctx, "alice", "install-1")
	require.ErrorIs(t, err, driven.ErrEncryptionKeyNotSet)
}

func TestCredentialRepo_ValuesEncryptedAtRest(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCredentialRepo(db, testKey())
	ctx := context.Background()

	err := repo.Put(ctx, model.Credential{
		User: "alice", Scope: "install-1",
		Access: "ghu_secret", Refresh: "ghr_secret",
		ExpiresAt: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var access string
	err = db.Reader.QueryRowContext(ctx,
		`SELECT access FROM credentials WHERE username = 'alice'`).Scan(&access)
	require.NoError(t, err)
	assert.NotContains(t, access, "ghu_secret")
}
