package services

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"tunegrab/internal/shared"
)

// HelperIssuer obtains session tokens by running an external helper binary
// that drives a headless browser through the fetch service's challenge page.
type HelperIssuer struct {
	// HelperPath is the token helper executable.
	HelperPath string

	// Timeout is passed to the helper and also bounds each invocation.
	Timeout time.Duration

	// Retries is the number of helper invocations before giving up.
	Retries int

	// TTL assigned to issued credentials; the helper itself does not report
	// an expiry.
	TTL time.Duration

	// locateBrowser is swapped in tests.
	locateBrowser func() (string, error)
}

// NewHelperIssuer builds an issuer from session configuration.
func NewHelperIssuer(cfg shared.SessionConfig) *HelperIssuer {
	return &HelperIssuer{
		HelperPath: cfg.HelperPath,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		Retries:    cfg.RetryAttempts,
		TTL:        time.Duration(cfg.TokenTTLSeconds) * time.Second,
		locateBrowser: func() (string, error) {
			return shared.LocateBrowser()
		},
	}
}

// Issue runs the helper and returns the token it prints. The browser
// environment is checked first so a machine without one fails fast with
// shared.ErrBrowserUnavailable instead of a cryptic helper error.
func (h *HelperIssuer) Issue(ctx context.Context) (Credential, error) {
	if h.HelperPath == "" {
		return Credential{}, fmt.Errorf("%w: no token helper configured", shared.ErrRefreshFailed)
	}

	if _, err := h.locateBrowser(); err != nil {
		return Credential{}, err
	}

	attempts := h.Retries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		token, err := h.runHelper(ctx)
		if err == nil {
			return Credential{
				Token:     token,
				ExpiresAt: time.Now().Add(h.TTL),
			}, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return Credential{}, ctx.Err()
		}
		if attempt < attempts {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return Credential{}, ctx.Err()
			}
		}
	}

	return Credential{}, fmt.Errorf("token helper failed after %d attempts: %w", attempts, lastErr)
}

func (h *HelperIssuer) runHelper(ctx context.Context) (string, error) {
	runCtx := ctx
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, h.Timeout+time.Second)
		defer cancel()
	}

	args := []string{"--retry", "1"}
	if h.Timeout > 0 {
		args = append(args, "--timeout", fmt.Sprintf("%d", int(h.Timeout.Seconds())))
	}

	cmd := exec.CommandContext(runCtx, h.HelperPath, args...)
	output, err := cmd.CombinedOutput()
	token := strings.TrimSpace(string(output))

	if err != nil {
		return "", fmt.Errorf("helper execution failed: %v (output: %s)", err, token)
	}
	if token == "" {
		return "", fmt.Errorf("helper returned no token")
	}
	// Session tokens are JWTs.
	if !strings.HasPrefix(token, "eyJ") {
		return "", fmt.Errorf("helper returned an invalid token: %s", token)
	}
	return token, nil
}
