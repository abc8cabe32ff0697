package services

import (
	"context"
	"strings"
	"time"
)

// Credential is a short-lived session token for the fetch service.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// Expired reports whether the credential is missing or past its expiry.
func (c Credential) Expired() bool {
	return c.Token == "" || !c.ExpiresAt.After(time.Now())
}

// TokenIssuer produces fresh credentials. Issuance may be slow and
// interactive (a browser-driven helper), so it takes a context.
type TokenIssuer interface {
	Issue(ctx context.Context) (Credential, error)
}

// authMarkers are the substrings that identify a credential rejection in
// fetch service error strings.
var authMarkers = []string{"unauthorized", "err_unauthorized", "403"}

// IsAuthError reports whether a fetch service error message indicates an
// expired or rejected credential, as opposed to an item-level failure.
func IsAuthError(message string) bool {
	lowered := strings.ToLower(message)
	for _, marker := range authMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
