package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calmwater/bestway-bridge/internal/bestway"
)

// TokenManager owns the vendor session token.
//
// The login endpoint is rate limited, so the manager logs in lazily and
// keeps re-using the token until it is within the expiry margin. When
// the cloud rejects a token mid-flight (ErrTokenInvalid on a poll), the
// caller invalidates the token and the next EnsureValid performs a
// fresh login.
type TokenManager struct {
	username string
	password string
	margin   time.Duration

	// login performs the actual vendor login, replaceable in tests.
	login func(ctx context.Context) (bestway.UserToken, error)

	mu    sync.Mutex
	token bestway.UserToken

	logger Logger
	now    func() time.Time
}

// NewTokenManager creates a token manager for the given account.
// timeout bounds each login call; margin is how long before expiry a
// re-login is triggered.
func NewTokenManager(apiRoot, username, password string, timeout, margin time.Duration) *TokenManager {
	return &TokenManager{
		username: username,
		password: password,
		margin:   margin,
		login: func(ctx context.Context) (bestway.UserToken, error) {
			return bestway.GetUserToken(ctx, apiRoot, username, password, timeout)
		},
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the token manager.
func (tm *TokenManager) SetLogger(logger Logger) {
	tm.logger = logger
}

// EnsureValid returns a token that is not within the expiry margin,
// logging in when necessary.
func (tm *TokenManager) EnsureValid(ctx context.Context) (string, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.token.Token != "" && !tm.token.ExpiresWithin(tm.now(), tm.margin) {
		return tm.token.Token, nil
	}

	tm.logger.Info("logging in to vendor cloud", "username", tm.username)
	token, err := tm.login(ctx)
	if err != nil {
		return "", fmt.Errorf("refreshing user token: %w", err)
	}

	tm.token = token
	tm.logger.Info("vendor login successful",
		"expires_at", time.Unix(token.Expiry, 0).UTC().Format(time.RFC3339))
	return token.Token, nil
}

// Invalidate discards the current token so the next EnsureValid logs in
// again. Called when the cloud reports the token invalid before its
// stated expiry.
func (tm *TokenManager) Invalidate() {
	tm.mu.Lock()
	tm.token = bestway.UserToken{}
	tm.mu.Unlock()
}
