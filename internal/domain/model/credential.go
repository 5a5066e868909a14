package model

import "time"

// Credential holds a user's access/refresh token pair for one installation
// scope. At most one credential exists per (User, Scope); refresh mutates it
// in place. There is no revocation path.
type Credential struct {
	ID        int64
	User      string
	Scope     string
	Access    string
	Refresh   string
	ExpiresAt time.Time
	UpdatedAt time.Time
}
