package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/efisher/swapreview/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.IdentityClient = (*Identity)(nil)

// defaultTokenURL is GitHub's OAuth token endpoint, which also serves the
// GitHub App user-to-server refresh grant.
const defaultTokenURL = "https://github.com/login/oauth/access_token"

// Identity implements driven.IdentityClient against GitHub's token endpoint.
// Client authentication is either the shared client secret or, when a signing
// key is configured, an RS256-signed app assertion sent as a bearer token
// (the GitHub App flavor of private-key client auth).
type Identity struct {
	clientID     string
	clientSecret string
	signingKey   *rsa.PrivateKey // nil when authenticating with clientSecret only.
	tokenURL     string
	httpClient   *http.Client
}

// NewIdentity creates an Identity client authenticating with the app's
// client secret. signingKey may be nil; when set, each request additionally
// carries a short-lived RS256 assertion identifying the app.
func NewIdentity(clientID, clientSecret string, signingKey *rsa.PrivateKey) *Identity {
	return &Identity{
		clientID:     clientID,
		clientSecret: clientSecret,
		signingKey:   signingKey,
		tokenURL:     defaultTokenURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// NewIdentityWithTokenURL creates an Identity client targeting the given
// token endpoint. Intended for testing against an httptest server.
func NewIdentityWithTokenURL(clientID, clientSecret, tokenURL string) *Identity {
	return &Identity{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// tokenResponse is the JSON shape of the token endpoint's reply.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	ExpiresIn        int64  `json:"expires_in"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Refresh exchanges a refresh token for a new access/refresh pair.
func (c *Identity) Refresh(ctx context.Context, refreshToken string) (driven.TokenGrant, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return driven.TokenGrant{}, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if c.signingKey != nil {
		assertion, err := c.appAssertion()
		if err != nil {
			return driven.TokenGrant{}, err
		}
		req.Header.Set("Authorization", "Bearer "+assertion)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return driven.TokenGrant{}, fmt.Errorf("refresh token exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return driven.TokenGrant{}, fmt.Errorf("read refresh response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return driven.TokenGrant{}, fmt.Errorf("refresh token exchange: status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return driven.TokenGrant{}, fmt.Errorf("decode refresh response: %w", err)
	}

	// GitHub reports grant errors in a 200 body.
	if tr.Error != "" {
		return driven.TokenGrant{}, fmt.Errorf("refresh rejected: %s: %s", tr.Error, tr.ErrorDescription)
	}
	if tr.AccessToken == "" {
		return driven.TokenGrant{}, fmt.Errorf("refresh response missing access token")
	}

	return driven.TokenGrant{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresIn:    time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

// appAssertion mints a short-lived RS256 JWT identifying the app. The 60
// second iat backdate absorbs clock drift between us and the provider.
func (c *Identity) appAssertion() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    c.clientID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(5 * time.Minute)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign app assertion: %w", err)
	}
	return signed, nil
}
