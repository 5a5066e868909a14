package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/efisher/swapreview/internal/domain/model"
	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port
// interface. Access and refresh tokens are encrypted with AES-256-GCM before
// write and decrypted after read; expiry metadata stays plaintext so the
// refresh margin can be evaluated without decryption.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for
// AES-256-GCM, or nil to disable credential storage (all operations will
// return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Put stores or replaces the credential for (cred.User, cred.Scope).
func (r *CredentialRepo) Put(ctx context.Context, cred model.Credential) error {
	access, err := r.encrypt(cred.Access)
	if err != nil {
		return err
	}
	refresh, err := r.encrypt(cred.Refresh)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO credentials (username, scope, access, refresh, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(username, scope) DO UPDATE SET
			access = excluded.access,
			refresh = excluded.refresh,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`

	_, err = r.db.Writer.ExecContext(ctx, query, cred.User, cred.Scope, access, refresh, cred.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("put credential for %q in %q: %w", cred.User, cred.Scope, err)
	}
	return nil
}

// Get retrieves the credential for the given user and scope.
// Returns (nil, nil) if no credential exists.
func (r *CredentialRepo) Get(ctx context.Context, user, scope string) (*model.Credential, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `
		SELECT id, username, scope, access, refresh, expires_at, updated_at
		FROM credentials
		WHERE username = ? AND scope = ?
	`

	var cred model.Credential
	var access, refresh, expiresAt, updatedAt string
	err := r.db.Reader.QueryRowContext(ctx, query, user, scope).
		Scan(&cred.ID, &cred.User, &cred.Scope, &access, &refresh, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential for %q in %q: %w", user, scope, err)
	}

	if cred.Access, err = r.decrypt(access); err != nil {
		return nil, fmt.Errorf("decrypt access token for %q: %w", user, err)
	}
	if cred.Refresh, err = r.decrypt(refresh); err != nil {
		return nil, fmt.Errorf("decrypt refresh token for %q: %w", user, err)
	}
	if cred.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at for %q: %w", user, err)
	}
	if cred.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for %q: %w", user, err)
	}

	return &cred, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded
// string containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	block, err := aes.NewCipher(r.key)
	if err != nil {
		return "", fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("cipher.NewGCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}
