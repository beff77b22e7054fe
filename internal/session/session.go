// Package session holds the current token pair and user profile on top of a
// storage backend. Reads fail soft: anything unreadable is reported as absent.
package session

import (
	"context"
	"errors"
	"log/slog"
	"quickcommerce/internal/model"
	"quickcommerce/internal/storage"
)

// Navigator moves the presentation layer to the unauthenticated view.
type Navigator func()

type Store struct {
	storage  storage.Storage
	log      *slog.Logger
	navigate Navigator
}

type Option func(*Store)

func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.navigate = n }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

func New(st storage.Storage, opts ...Option) *Store {
	s := &Store{storage: st, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tokens returns the stored pair or nil.
func (s *Store) Tokens(ctx context.Context) *model.TokenPair {
	tokens, err := s.storage.GetTokens(ctx)
	if err != nil {
		s.logReadError("tokens", err)
		return nil
	}
	if tokens == nil || (tokens.Access == "" && tokens.Refresh == "") {
		return nil
	}
	return tokens
}

func (s *Store) SetTokens(ctx context.Context, tokens model.TokenPair) error {
	return s.storage.SaveTokens(ctx, tokens)
}

// User returns the stored profile or nil.
func (s *Store) User(ctx context.Context) *model.User {
	user, err := s.storage.GetUser(ctx)
	if err != nil {
		s.logReadError("user", err)
		return nil
	}
	if user == nil || *user == (model.User{}) {
		return nil
	}
	return user
}

func (s *Store) SetUser(ctx context.Context, user model.User) error {
	return s.storage.SaveUser(ctx, user)
}

func (s *Store) ClearTokens(ctx context.Context) error {
	return s.storage.DeleteTokens(ctx)
}

func (s *Store) ClearUser(ctx context.Context) error {
	return s.storage.DeleteUser(ctx)
}

// Authenticated reports whether both tokens and user are present.
func (s *Store) Authenticated(ctx context.Context) bool {
	return s.Tokens(ctx) != nil && s.User(ctx) != nil
}

// Logout clears tokens and user independently, then navigates to the login
// view. Safe to call when already logged out.
func (s *Store) Logout(ctx context.Context) {
	if err := s.ClearTokens(ctx); err != nil {
		s.log.Warn("failed to clear tokens", slog.String("error", err.Error()))
	}
	if err := s.ClearUser(ctx); err != nil {
		s.log.Warn("failed to clear user", slog.String("error", err.Error()))
	}

	s.log.Info("session cleared")

	if s.navigate != nil {
		s.navigate()
	}
}

func (s *Store) logReadError(what string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	s.log.Warn("session read failed, treating as absent",
		slog.String("key", what),
		slog.String("error", err.Error()))
}
