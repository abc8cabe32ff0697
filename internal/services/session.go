package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"tunegrab/internal/shared"
)

const (
	// minRefreshInterval spaces out refresh attempts so a burst of auth
	// failures cannot hammer the issuer.
	minRefreshInterval = 2 * time.Second

	// expiryLeeway treats a credential as stale slightly before its actual
	// expiry so an in-flight download never presents a just-expired token.
	expiryLeeway = 5 * time.Second
)

// Session manages the fetch service credential lifecycle: it caches the
// current token, refreshes it through a TokenIssuer when missing or expired,
// and collapses concurrent refresh demands into a single issuance.
//
// State is guarded by a one-slot semaphore instead of a mutex so waiters can
// abandon a slow refresh when their context is cancelled.
type Session struct {
	issuer  TokenIssuer
	ttl     time.Duration
	limiter *rate.Limiter
	sem     chan struct{}

	credential  Credential
	refreshedAt time.Time
}

// NewSession creates a session manager around the given issuer. ttl bounds
// credential lifetime when the issuer does not report an expiry itself.
func NewSession(issuer TokenIssuer, ttl time.Duration) *Session {
	return newSession(issuer, ttl, minRefreshInterval)
}

func newSession(issuer TokenIssuer, ttl time.Duration, minInterval time.Duration) *Session {
	s := &Session{
		issuer:  issuer,
		ttl:     ttl,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
		sem:     make(chan struct{}, 1),
	}
	return s
}

func (s *Session) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) release() {
	<-s.sem
}

// EnsureValid returns a credential token, refreshing first when the cached
// one is missing or stale. With force set the cache is bypassed, except that
// a refresh completed by another caller while this one waited satisfies the
// demand: one forced refresh serves every caller queued behind it.
func (s *Session) EnsureValid(ctx context.Context, force bool) (string, error) {
	entered := time.Now()

	if err := s.acquire(ctx); err != nil {
		return "", err
	}
	defer s.release()

	if s.fresh() {
		// A refresh completed while we waited for the slot also satisfies a
		// forced demand.
		if !force || s.refreshedAt.After(entered) {
			return s.credential.Token, nil
		}
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	credential, err := s.issuer.Issue(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrBrowserUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	if credential.Token == "" {
		return "", fmt.Errorf("%w: issuer returned an empty token", shared.ErrRefreshFailed)
	}
	if credential.ExpiresAt.IsZero() {
		credential.ExpiresAt = time.Now().Add(s.ttl)
	}

	s.credential = credential
	s.refreshedAt = time.Now()
	return credential.Token, nil
}

// Status reports the cached credential without triggering a refresh. A cached
// but stale credential comes back alongside shared.ErrTokenExpired so callers
// can distinguish "expired" from "never issued".
func (s *Session) Status(ctx context.Context) (Credential, error) {
	if err := s.acquire(ctx); err != nil {
		return Credential{}, err
	}
	defer s.release()

	if s.credential.Token != "" && !s.fresh() {
		return s.credential, fmt.Errorf("%w: expired at %s",
			shared.ErrTokenExpired, s.credential.ExpiresAt.Format(time.RFC3339))
	}
	return s.credential, nil
}

// Invalidate drops the cached credential so the next EnsureValid refreshes.
func (s *Session) Invalidate() {
	s.sem <- struct{}{}
	s.credential = Credential{}
	s.release()
}

func (s *Session) fresh() bool {
	return s.credential.Token != "" && time.Until(s.credential.ExpiresAt) > expiryLeeway
}
