package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"tunegrab/internal/shared"
)

// SessionStatus reports whether a usable credential is cached and when it expires.
func (r *Runner) SessionStatus(ctx context.Context, cmd *cli.Command) error {
	credential, err := r.session.Status(ctx)
	stale := errors.Is(err, shared.ErrTokenExpired)
	if err != nil && !stale {
		return fmt.Errorf("failed to read session status: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"cached":     credential.Token != "",
			"expired":    stale || credential.Expired(),
			"expires_at": credential.ExpiresAt,
		}, cmd.Bool("pretty"))
	}

	switch {
	case credential.Token == "":
		r.writePlain("No session token cached\n")
	case stale:
		r.writePlain("Session token expired at %s\n", credential.ExpiresAt.Format(time.RFC3339))
	default:
		r.writePlain("✓ Session token valid until %s\n", credential.ExpiresAt.Format(time.RFC3339))
	}

	return nil
}

// SessionRefresh forces a token refresh regardless of cached freshness.
func (r *Runner) SessionRefresh(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("forcing session refresh")

	if _, err := r.session.EnsureValid(ctx, true); err != nil {
		return fmt.Errorf("session refresh failed: %w", err)
	}

	credential, err := r.session.Status(ctx)
	if err != nil && !errors.Is(err, shared.ErrTokenExpired) {
		return fmt.Errorf("failed to read session status: %w", err)
	}

	r.writePlain("✓ Session refreshed, valid until %s\n", credential.ExpiresAt.Format(time.RFC3339))
	return nil
}

// SessionInvalidate drops the cached credential.
func (r *Runner) SessionInvalidate(ctx context.Context, cmd *cli.Command) error {
	r.session.Invalidate()
	r.writePlain("✓ Cached session token dropped\n")
	return nil
}

// sessionCommand handles credential lifecycle operations.
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "session",
		Usage: "Manage the download service session token",
		Commands: []*cli.Command{
			{
				Name:  "status",
				Usage: "Show cached token freshness",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "Output as JSON"},
					&cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output"},
				},
				Action: r.SessionStatus,
			},
			{
				Name:   "refresh",
				Usage:  "Force a token refresh",
				Action: r.SessionRefresh,
			},
			{
				Name:   "invalidate",
				Usage:  "Drop the cached token",
				Action: r.SessionInvalidate,
			},
		},
	}
}
