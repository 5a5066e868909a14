package driven

import (
	"context"
	"time"
)

// TokenGrant is the identity provider's response to a refresh exchange.
// RefreshToken is empty when the provider did not rotate the refresh token;
// callers must retain the old one in that case.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// IdentityClient defines the driven port for the identity provider's token
// endpoint: exchanging a stored refresh token for a fresh access/refresh
// pair. Obtaining the first credential (the interactive authorization flow)
// is out of scope; credentials enter the system via CredentialStore.Put.
type IdentityClient interface {
	Refresh(ctx context.Context, refreshToken string) (TokenGrant, error)
}
