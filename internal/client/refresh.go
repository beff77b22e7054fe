package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"quickcommerce/internal/model"
	"quickcommerce/internal/pkg/redact"
	"strings"
)

const RefreshPath = "/auth/refresh"

var (
	ErrNoRefreshToken = errors.New("no refresh token stored")
	ErrNoAccessToken  = errors.New("refresh response has no access token")
)

// refresh reports whether the session now holds a fresh access token.
// rejected is the access token the server just refused. Concurrent callers
// holding the same refresh token share one attempt, and a caller whose token
// was already replaced by another refresh replays without a new one.
func (c *Client) refresh(ctx context.Context, rejected string) bool {
	tokens := c.sessions.Tokens(ctx)
	if tokens == nil || tokens.Refresh == "" {
		c.log.Debug("cannot refresh", slog.String("error", ErrNoRefreshToken.Error()))
		c.metrics.recordRefresh(ctx, false)
		return false
	}
	current := *tokens
	if current.Access != "" && current.Access != rejected {
		return true
	}

	ch := c.refreshGroup.DoChan(current.Refresh, func() (interface{}, error) {
		// Detached so one caller giving up does not fail the others.
		ctx := context.WithoutCancel(ctx)

		// A flight that settled since the check above may have rotated the
		// pair; the refresh token read then is already spent.
		latest := c.sessions.Tokens(ctx)
		switch {
		case latest == nil || latest.Refresh == "":
			return nil, ErrNoRefreshToken
		case latest.Refresh != current.Refresh, latest.Access != "" && latest.Access != rejected:
			return nil, nil
		}
		return nil, c.refreshOnce(ctx, current)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.log.Debug("joined in-flight refresh")
		}
		return res.Err == nil
	case <-ctx.Done():
		return false
	}
}

func (c *Client) refreshOnce(ctx context.Context, current model.TokenPair) (err error) {
	defer func() { c.metrics.recordRefresh(ctx, err == nil) }()

	ctx, span := c.tracer.Start(ctx, "api refresh")
	defer span.End()

	resp, err := c.refresher.Refresh(ctx, current.Refresh)
	if err != nil {
		c.log.Warn("token refresh failed", slog.String("error", err.Error()))
		return err
	}
	if resp == nil || resp.AccessToken == "" {
		c.log.Warn("token refresh failed", slog.String("error", ErrNoAccessToken.Error()))
		return ErrNoAccessToken
	}

	next := model.TokenPair{Access: resp.AccessToken, Refresh: current.Refresh}
	if resp.RefreshToken != "" {
		next.Refresh = resp.RefreshToken
	}

	if err := c.sessions.SetTokens(ctx, next); err != nil {
		c.log.Error("failed to store refreshed tokens", slog.String("error", err.Error()))
		return err
	}
	if resp.User != nil {
		if err := c.sessions.SetUser(ctx, *resp.User); err != nil {
			c.log.Warn("failed to store refreshed user", slog.String("error", err.Error()))
		}
	}

	c.log.Info("access token refreshed",
		slog.Bool("refresh_rotated", next.Refresh != current.Refresh),
		slog.String("refresh_token", redact.Token()))
	return nil
}

// HTTPRefresher calls POST /auth/refresh with the refresh token as bearer.
type HTTPRefresher struct {
	baseURL string
	http    Doer
}

func NewHTTPRefresher(baseURL string, d Doer) *HTTPRefresher {
	if d == nil {
		d = http.DefaultClient
	}
	return &HTTPRefresher{baseURL: strings.TrimRight(baseURL, "/"), http: d}
}

func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	const op = "client.HTTPRefresher.Refresh"

	if refreshToken == "" {
		return nil, ErrNoRefreshToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+RefreshPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+refreshToken)

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, networkUnavailable(err))
	}

	result, err := normalize(resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var out model.AuthResponse
	if err := json.Unmarshal(result.Body, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoAccessToken)
	}
	return &out, nil
}
