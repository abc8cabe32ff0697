package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tunegrab/internal/shared"
)

type fakeIssuer struct {
	calls int64
	delay time.Duration
	err   error
}

func (f *fakeIssuer) Issue(ctx context.Context) (Credential, error) {
	n := atomic.AddInt64(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Credential{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Credential{}, f.err
	}
	return Credential{Token: fmt.Sprintf("eyJtoken-%d", n)}, nil
}

func TestSessionEnsureValid(t *testing.T) {
	t.Run("caches the issued token", func(t *testing.T) {
		issuer := &fakeIssuer{}
		session := newSession(issuer, time.Minute, time.Millisecond)

		first, err := session.EnsureValid(context.Background(), false)
		if err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}

		second, err := session.EnsureValid(context.Background(), false)
		if err != nil {
			t.Fatalf("cached read failed: %v", err)
		}

		if first != second {
			t.Errorf("expected cached token %q, got %q", first, second)
		}
		if got := atomic.LoadInt64(&issuer.calls); got != 1 {
			t.Errorf("expected 1 issuance, got %d", got)
		}
	})

	t.Run("concurrent demands collapse into one refresh", func(t *testing.T) {
		issuer := &fakeIssuer{delay: 50 * time.Millisecond}
		session := newSession(issuer, time.Minute, time.Millisecond)

		var wg sync.WaitGroup
		tokens := make([]string, 8)
		for i := range tokens {
			wg.Add(1)
			go func() {
				defer wg.Done()
				token, err := session.EnsureValid(context.Background(), false)
				if err != nil {
					t.Errorf("refresh failed: %v", err)
					return
				}
				tokens[i] = token
			}()
		}
		wg.Wait()

		if got := atomic.LoadInt64(&issuer.calls); got != 1 {
			t.Errorf("expected a single issuance, got %d", got)
		}
		for i, token := range tokens {
			if token != tokens[0] {
				t.Errorf("token %d diverged: %q vs %q", i, token, tokens[0])
			}
		}
	})

	t.Run("force bypasses the cache", func(t *testing.T) {
		issuer := &fakeIssuer{}
		session := newSession(issuer, time.Minute, time.Millisecond)

		first, err := session.EnsureValid(context.Background(), false)
		if err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}

		second, err := session.EnsureValid(context.Background(), true)
		if err != nil {
			t.Fatalf("forced refresh failed: %v", err)
		}

		if first == second {
			t.Error("forced refresh should issue a new token")
		}
		if got := atomic.LoadInt64(&issuer.calls); got != 2 {
			t.Errorf("expected 2 issuances, got %d", got)
		}
	})

	t.Run("refreshes enforce minimum spacing", func(t *testing.T) {
		issuer := &fakeIssuer{}
		interval := 80 * time.Millisecond
		session := newSession(issuer, time.Minute, interval)

		start := time.Now()
		if _, err := session.EnsureValid(context.Background(), true); err != nil {
			t.Fatalf("first refresh failed: %v", err)
		}
		if _, err := session.EnsureValid(context.Background(), true); err != nil {
			t.Fatalf("second refresh failed: %v", err)
		}

		if elapsed := time.Since(start); elapsed < interval {
			t.Errorf("second refresh ran after %v, want at least %v", elapsed, interval)
		}
	})

	t.Run("browser unavailable surfaces unwrapped", func(t *testing.T) {
		issuer := &fakeIssuer{err: shared.ErrBrowserUnavailable}
		session := newSession(issuer, time.Minute, time.Millisecond)

		_, err := session.EnsureValid(context.Background(), false)
		if !errors.Is(err, shared.ErrBrowserUnavailable) {
			t.Errorf("expected ErrBrowserUnavailable, got %v", err)
		}
	})

	t.Run("issuer failure wraps ErrRefreshFailed", func(t *testing.T) {
		issuer := &fakeIssuer{err: fmt.Errorf("helper crashed")}
		session := newSession(issuer, time.Minute, time.Millisecond)

		_, err := session.EnsureValid(context.Background(), false)
		if !errors.Is(err, shared.ErrRefreshFailed) {
			t.Errorf("expected ErrRefreshFailed, got %v", err)
		}
	})

	t.Run("cancelled waiter gives up", func(t *testing.T) {
		issuer := &fakeIssuer{delay: 200 * time.Millisecond}
		session := newSession(issuer, time.Minute, time.Millisecond)

		started := make(chan struct{})
		go func() {
			close(started)
			session.EnsureValid(context.Background(), false)
		}()
		<-started
		time.Sleep(20 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := session.EnsureValid(ctx, false)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})
}

func TestSessionStatus(t *testing.T) {
	issuer := &fakeIssuer{}
	session := newSession(issuer, time.Minute, time.Millisecond)

	credential, err := session.Status(context.Background())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if credential.Token != "" {
		t.Error("expected no cached credential before first refresh")
	}
	if !credential.Expired() {
		t.Error("empty credential should report expired")
	}

	if _, err := session.EnsureValid(context.Background(), false); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	credential, err = session.Status(context.Background())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if credential.Token == "" {
		t.Error("expected cached credential after refresh")
	}
	if credential.Expired() {
		t.Error("fresh credential should not report expired")
	}

	session.Invalidate()
	credential, _ = session.Status(context.Background())
	if credential.Token != "" {
		t.Error("invalidate should drop the cached credential")
	}
}

func TestSessionStatusStaleToken(t *testing.T) {
	// A ttl below the expiry leeway makes the issued token stale immediately.
	issuer := &fakeIssuer{}
	session := newSession(issuer, time.Second, time.Millisecond)

	if _, err := session.EnsureValid(context.Background(), false); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	credential, err := session.Status(context.Background())
	if !errors.Is(err, shared.ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired for a stale cached token, got %v", err)
	}
	if credential.Token == "" {
		t.Error("stale status should still return the cached credential")
	}
}
