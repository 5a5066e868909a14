// Package config loads application configuration from environment variables.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr         string
	DBPath             string
	SecretKey          []byte // 32-byte AES-256 key; nil disables credential storage.
	GitHubClientID     string
	GitHubClientSecret string
	GitHubAppKeyPath   string // PEM file with the app's RSA private key; optional.
	AuthorizeBase      string // Fallback base URL for authorization links.
}

// Load reads configuration from environment variables and returns a validated
// Config. All variables are optional with defaults except SWAPREVIEW_SECRET_KEY,
// which, when absent, disables credential storage: commands still record
// pledges but every participant is reported as awaiting authorization.
// Optional variables with defaults: SWAPREVIEW_LISTEN_ADDR (127.0.0.1:8080),
// SWAPREVIEW_DB_PATH (swapreview.db).
func Load() (*Config, error) {
	listenAddr := "127.0.0.1:8080"
	if v, ok := os.LookupEnv("SWAPREVIEW_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "swapreview.db"
	if v, ok := os.LookupEnv("SWAPREVIEW_DB_PATH"); ok {
		dbPath = v
	}

	var secretKey []byte
	if v, ok := os.LookupEnv("SWAPREVIEW_SECRET_KEY"); ok && v != "" {
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("SWAPREVIEW_SECRET_KEY is not valid base64: %w", err)
		}
		if len(decoded) != 32 {
			return nil, fmt.Errorf("SWAPREVIEW_SECRET_KEY must decode to 32 bytes, got %d", len(decoded))
		}
		secretKey = decoded
	}

	return &Config{
		ListenAddr:         listenAddr,
		DBPath:             dbPath,
		SecretKey:          secretKey,
		GitHubClientID:     os.Getenv("SWAPREVIEW_GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("SWAPREVIEW_GITHUB_CLIENT_SECRET"),
		GitHubAppKeyPath:   os.Getenv("SWAPREVIEW_GITHUB_APP_PRIVATE_KEY"),
		AuthorizeBase:      os.Getenv("SWAPREVIEW_AUTHORIZE_BASE"),
	}, nil
}
