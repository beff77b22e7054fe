package storage

import (
	"context"
	"errors"
	"quickcommerce/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	ErrCorrupt  = errors.New("corrupt session data")
)

// Storage persists the session pieces. Tokens and user live under separate
// keys so each can be cleared independently.
type Storage interface {
	GetTokens(ctx context.Context) (*model.TokenPair, error)
	SaveTokens(ctx context.Context, tokens model.TokenPair) error
	DeleteTokens(ctx context.Context) error

	GetUser(ctx context.Context) (*model.User, error)
	SaveUser(ctx context.Context, user model.User) error
	DeleteUser(ctx context.Context) error
}

const (
	TokensKey = "qcm_tokens"
	UserKey   = "qcm_user"
)
