// Package auth talks to the sso gRPC service for login and token refresh.
package auth

import (
	"context"
	"errors"
	"fmt"
	"github.com/s10n41k/protos/gen/go/sso"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"log/slog"
	"quickcommerce/internal/model"
	"quickcommerce/internal/pkg/redact"
	"time"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshRejected    = errors.New("refresh token rejected")
	ErrUnavailable        = errors.New("auth service unavailable")
	ErrEmptyToken         = errors.New("auth service returned an empty token")
)

type Client struct {
	api      sso.AuthClient
	timeout  time.Duration
	deviceID string
	log      *slog.Logger
}

func New(api sso.AuthClient, timeout time.Duration, deviceID string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{api: api, timeout: timeout, deviceID: deviceID, log: log}
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.TokenPair, error) {
	const op = "grpc.auth.Login"

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	c.log.Debug("grpc login",
		slog.String("email", redact.Email(email)),
		slog.String("password", redact.Password()))

	resp, err := c.api.Login(ctx, &sso.LoginRequest{
		Email:    email,
		Password: password,
		DeviceID: c.deviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err, ErrInvalidCredentials))
	}

	if resp.GetTokenAccess() == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}
	return &model.TokenPair{Access: resp.GetTokenAccess(), Refresh: resp.GetTokenRefresh()}, nil
}

// Refresh exchanges refreshToken through GetAccessToken. The service always
// rotates the refresh token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	const op = "grpc.auth.Refresh"

	if refreshToken == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrRefreshRejected)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.GetAccessToken(ctx, &sso.TokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, mapError(err, ErrRefreshRejected))
	}

	if resp.GetAccessToken() == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyToken)
	}
	return &model.AuthResponse{
		AccessToken:  resp.GetAccessToken(),
		RefreshToken: resp.GetRefreshToken(),
	}, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func mapError(err error, rejected error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied, codes.NotFound, codes.InvalidArgument:
		return fmt.Errorf("%w: %s", rejected, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	default:
		return err
	}
}
