package bestway

import (
	"context"
	"fmt"
	"time"
)

// GetUserToken logs in and obtains a user token.
//
// The server rate-limits this endpoint fairly aggressively, so callers
// should store the token and reuse it until close to expiry rather than
// logging in per poll cycle.
//
// A wrong password surfaces as ErrIncorrectPassword and an unknown
// account as ErrUserNotFound.
func GetUserToken(ctx context.Context, apiRoot, username, password string, timeout time.Duration) (UserToken, error) {
	body := map[string]string{
		"username": username,
		"password": password,
		"lang":     "en",
	}

	var resp struct {
		UID      string `json:"uid"`
		Token    string `json:"token"`
		ExpireAt int64  `json:"expire_at"`
	}

	t := newTransport(apiRoot, timeout)
	if err := t.post(ctx, "/app/login", "", body, &resp); err != nil {
		return UserToken{}, fmt.Errorf("logging in: %w", err)
	}

	if resp.Token == "" {
		return UserToken{}, fmt.Errorf("%w: login response contained no token", ErrAPI)
	}

	return UserToken{
		UserID: resp.UID,
		Token:  resp.Token,
		Expiry: resp.ExpireAt,
	}, nil
}
