package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calmwater/bestway-bridge/internal/bestway"
)

func TestTokenManagerReusesValidToken(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logins := 0

	tm := NewTokenManager("http://unused", "u", "p", time.Second, time.Hour)
	tm.now = func() time.Time { return now }
	tm.login = func(ctx context.Context) (bestway.UserToken, error) {
		logins++
		return bestway.UserToken{Token: "tok", Expiry: now.Add(24 * time.Hour).Unix()}, nil
	}

	for i := 0; i < 3; i++ {
		token, err := tm.EnsureValid(context.Background())
		if err != nil {
			t.Fatalf("EnsureValid() error: %v", err)
		}
		if token != "tok" {
			t.Fatalf("token = %q", token)
		}
	}

	if logins != 1 {
		t.Errorf("login called %d times, want 1", logins)
	}
}

func TestTokenManagerRefreshesNearExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logins := 0

	tm := NewTokenManager("http://unused", "u", "p", time.Second, time.Hour)
	tm.now = func() time.Time { return now }
	tm.login = func(ctx context.Context) (bestway.UserToken, error) {
		logins++
		// Expires inside the one hour margin.
		return bestway.UserToken{Token: "tok", Expiry: now.Add(10 * time.Minute).Unix()}, nil
	}

	tm.EnsureValid(context.Background())
	tm.EnsureValid(context.Background())

	if logins != 2 {
		t.Errorf("login called %d times, want a fresh login per call near expiry", logins)
	}
}

func TestTokenManagerInvalidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	logins := 0

	tm := NewTokenManager("http://unused", "u", "p", time.Second, time.Hour)
	tm.now = func() time.Time { return now }
	tm.login = func(ctx context.Context) (bestway.UserToken, error) {
		logins++
		return bestway.UserToken{Token: "tok", Expiry: now.Add(24 * time.Hour).Unix()}, nil
	}

	tm.EnsureValid(context.Background())
	tm.Invalidate()
	tm.EnsureValid(context.Background())

	if logins != 2 {
		t.Errorf("login called %d times after invalidate, want 2", logins)
	}
}

func TestTokenManagerLoginError(t *testing.T) {
	wantErr := errors.New("boom")
	tm := NewTokenManager("http://unused", "u", "p", time.Second, time.Hour)
	tm.login = func(ctx context.Context) (bestway.UserToken, error) {
		return bestway.UserToken{}, wantErr
	}

	if _, err := tm.EnsureValid(context.Background()); !errors.Is(err, wantErr) {
		t.Errorf("EnsureValid() error = %v, want %v", err, wantErr)
	}
}
