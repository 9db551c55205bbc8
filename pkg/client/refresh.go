package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/naveenspark/shopdrop/pkg/domain"
)

// retryOnUnauthorized runs fn with the current token. On a 401 it refreshes
// once and replays fn with the new token. A failed refresh, or a second 401,
// ends session gen and returns an *AuthError. If gen was signed out while the
// refresh was in flight the request is not replayed.
func (c *Client) retryOnUnauthorized(ctx context.Context, gen uint64, path string, fn func(token string) error) error {
	token := c.tokens.AccessToken()
	err := fn(token)
	if !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	c.logger.Debug("access token rejected, refreshing", "path", path)
	fresh, refreshErr := c.refreshToken(ctx, gen, token, false)
	switch {
	case errors.Is(refreshErr, ErrSessionEnded):
		return &AuthError{Err: err, Refresh: refreshErr}
	case refreshErr != nil:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return c.authFailed(gen, err, refreshErr)
	case c.tokens.Generation() != gen:
		return &AuthError{Err: err, Refresh: ErrSessionEnded}
	}

	err = fn(fresh)
	if IsStatus(err, http.StatusUnauthorized) {
		return c.authFailed(gen, err, nil)
	}
	return err
}

// refreshToken returns a token newer than stale for session gen. If another
// caller already rotated it, that token is reused without a round trip unless
// force is set. The shared refresh is detached from the caller's cancellation
// so one abandoned request cannot fail the refresh for everyone waiting on it.
func (c *Client) refreshToken(ctx context.Context, gen uint64, stale string, force bool) (string, error) {
	if c.tokens.Generation() != gen {
		return "", ErrSessionEnded
	}
	if current := c.tokens.AccessToken(); !force && current != "" && current != stale {
		return current, nil
	}
	ch := c.refreshGroup.DoChan(fmt.Sprintf("refresh/%d", gen), func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// refresh calls the refresh endpoint without the bearer header and without
// the retry decorator. The refresh cookie travels in the client's jar.
func (c *Client) refresh(ctx context.Context, gen uint64) (string, error) {
	var resp domain.AuthResponse
	if err := c.attempt(ctx, gen, http.MethodPost, refreshPath, []byte("{}"), nil, "", &resp); err != nil {
		return "", err
	}
	stored, err := c.tokens.RotateAccessToken(gen, resp.AccessToken)
	if err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	if !stored {
		c.logger.Info("refreshed token dropped, signed out meanwhile")
		return "", ErrSessionEnded
	}
	c.logger.Info("access token refreshed")
	return resp.AccessToken, nil
}

// authFailed ends session gen and runs the hook. When gen already ended the
// hook belongs to whoever ended it and is not run again.
func (c *Client) authFailed(gen uint64, original, refreshErr error) error {
	authErr := &AuthError{Err: original, Refresh: refreshErr}
	ended, err := c.tokens.EndSession(gen)
	if err != nil {
		c.logger.Warn("clear session after auth failure", "err", err)
	}
	if !ended && err == nil {
		return authErr
	}
	c.logger.Info("session expired", "err", authErr)
	if c.onAuthFailed != nil {
		c.onAuthFailed(authErr)
	}
	return authErr
}

// IsAuthFailed reports whether err means the user must sign in again.
func IsAuthFailed(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}
