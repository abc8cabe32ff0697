package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Credential errors
	ErrTokenExpired       = fmt.Errorf("session token expired")
	ErrRefreshFailed      = fmt.Errorf("token refresh failed")
	ErrBrowserUnavailable = fmt.Errorf("no supported browser available for token issuance")

	// Item and API errors
	ErrMissingTrackID     = fmt.Errorf("track has no catalog ID")
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)
