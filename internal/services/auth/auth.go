// Package auth implements login, registration and logout on top of the API
// client and the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	"quickcommerce/internal/pkg/redact"
	"quickcommerce/internal/token"
	"regexp"
	"strings"
	"time"
)

const (
	LoginPath    = "/auth/login"
	RegisterPath = "/auth/register"
	ProfilePath  = "/settings/profile"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserExists          = errors.New("user already exists")
	ErrMissingCredentials  = errors.New("email and password are required")
	ErrEmailInvalidFmt     = errors.New("email has an invalid format")
	ErrNotLoggedIn         = errors.New("not logged in")
	ErrSessionNotPersisted = errors.New("registration completed but the session was not stored, please try logging in")
)

// API is the part of the request client the flows use.
type API interface {
	Get(ctx context.Context, path string, out any, opts ...client.CallOption) (*client.Response, error)
	Post(ctx context.Context, path string, body, out any, opts ...client.CallOption) (*client.Response, error)
}

type Sessions interface {
	Tokens(ctx context.Context) *model.TokenPair
	SetTokens(ctx context.Context, tokens model.TokenPair) error
	User(ctx context.Context) *model.User
	SetUser(ctx context.Context, user model.User) error
	Logout(ctx context.Context)
}

// PasswordLogin logs in over a transport other than the REST API.
type PasswordLogin interface {
	Login(ctx context.Context, email, password string) (*model.TokenPair, error)
}

type Auth struct {
	api      API
	sessions Sessions
	grpc     PasswordLogin
	log      *slog.Logger
}

type Option func(*Auth)

// WithPasswordLogin routes Login through l; the user profile is then read
// from the settings endpoint.
func WithPasswordLogin(l PasswordLogin) Option {
	return func(a *Auth) { a.grpc = l }
}

func New(api API, sessions Sessions, log *slog.Logger, opts ...Option) *Auth {
	if log == nil {
		log = slog.Default()
	}
	a := &Auth{api: api, sessions: sessions, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Auth) Login(ctx context.Context, email, password string) (*model.User, error) {
	const op = "auth.Login"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
	}

	log := a.log.With(slog.String("op", op), slog.String("email", redact.Email(email)))

	if a.grpc != nil {
		return a.loginPassword(ctx, log, email, password)
	}

	var resp model.AuthResponse
	if _, err := a.api.Post(ctx, LoginPath, model.LoginRequest{Email: email, Password: password}, &resp, client.SkipRefresh()); err != nil {
		log.Warn("login failed", slog.String("error", err.Error()))
		if client.StatusCode(err) == http.StatusUnauthorized {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.store(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in")
	return user, nil
}

func (a *Auth) loginPassword(ctx context.Context, log *slog.Logger, email, password string) (*model.User, error) {
	const op = "auth.Login"

	tokens, err := a.grpc.Login(ctx, email, password)
	if err != nil {
		log.Warn("grpc login failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := a.sessions.SetTokens(ctx, *tokens); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var profile model.Profile
	if _, err := a.api.Get(ctx, ProfilePath, &profile); err != nil {
		log.Warn("failed to load profile after login", slog.String("error", err.Error()))
		profile = model.Profile{Email: email}
	}
	user := model.User{ID: profile.ID, Name: profile.Name, Email: profile.Email}
	if user.Email == "" {
		user.Email = email
	}
	if err := a.sessions.SetUser(ctx, user); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in over grpc")
	return &user, nil
}

func (a *Auth) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	const op = "auth.Register"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrMissingCredentials)
	}
	if err := validateEmail(email); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log := a.log.With(slog.String("op", op), slog.String("email", redact.Email(email)))

	var resp model.AuthResponse
	req := model.RegisterRequest{Name: strings.TrimSpace(name), Email: email, Password: password}
	if _, err := a.api.Post(ctx, RegisterPath, req, &resp, client.SkipRefresh()); err != nil {
		log.Warn("registration failed", slog.String("error", err.Error()))
		if client.StatusCode(err) == http.StatusConflict {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrUserExists, err)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.store(ctx, resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Registration only counts once both halves of the session are readable.
	if a.sessions.User(ctx) == nil || a.sessions.Tokens(ctx) == nil {
		log.Error("session verification failed after registration")
		return nil, fmt.Errorf("%s: %w", op, ErrSessionNotPersisted)
	}

	log.Info("user registered")
	return user, nil
}

func (a *Auth) store(ctx context.Context, resp model.AuthResponse) (*model.User, error) {
	if resp.User != nil {
		if err := a.sessions.SetUser(ctx, *resp.User); err != nil {
			return nil, err
		}
	}
	if resp.AccessToken != "" {
		if err := a.sessions.SetTokens(ctx, model.TokenPair{Access: resp.AccessToken, Refresh: resp.RefreshToken}); err != nil {
			return nil, err
		}
	}
	return resp.User, nil
}

func (a *Auth) Logout(ctx context.Context) {
	a.sessions.Logout(ctx)
	a.log.Info("user logged out")
}

// Identity describes the current session.
type Identity struct {
	User *model.User
	// AccessExpiresAt is zero when the access token carries no readable expiry.
	AccessExpiresAt time.Time
	HasRefresh      bool
}

func (i Identity) Expired(now time.Time) bool {
	return !i.AccessExpiresAt.IsZero() && !now.Before(i.AccessExpiresAt)
}

func (a *Auth) Whoami(ctx context.Context) (*Identity, error) {
	const op = "auth.Whoami"

	tokens := a.sessions.Tokens(ctx)
	if tokens == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotLoggedIn)
	}

	id := &Identity{User: a.sessions.User(ctx), HasRefresh: tokens.Refresh != ""}
	info, err := token.Inspect(tokens.Access)
	if err != nil {
		a.log.Debug("access token is not a readable jwt", slog.String("error", err.Error()))
		return id, nil
	}
	id.AccessExpiresAt = info.ExpiresAt
	return id, nil
}

var emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

func validateEmail(email string) error {
	if strings.Contains(email, " ") || !emailRe.MatchString(email) {
		return ErrEmailInvalidFmt
	}
	return nil
}
