package driven

import (
	"context"
	"errors"

	"github.com/efisher/swapreview/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// SWAPREVIEW_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set SWAPREVIEW_SECRET_KEY")

// ErrNotAuthorized is returned when a user has no usable credential for a
// scope: none was ever stored, or the stored one expired and could not be
// refreshed. It is always recoverable by the user re-authorizing and is
// never treated as a system failure.
var ErrNotAuthorized = errors.New("user is not authorized for this scope")

// CredentialStore defines the driven port for encrypted credential
// persistence. The adapter layer is responsible for encryption/decryption;
// this interface operates on plaintext tokens at the domain boundary.
type CredentialStore interface {
	// Put stores or replaces the credential for (cred.User, cred.Scope).
	// Idempotent upsert. Returns ErrEncryptionKeyNotSet if the adapter was
	// constructed without an encryption key.
	Put(ctx context.Context, cred model.Credential) error

	// Get retrieves the credential for the given user and scope.
	// Returns (nil, nil) if no credential exists.
	Get(ctx context.Context, user, scope string) (*model.Credential, error)
}
