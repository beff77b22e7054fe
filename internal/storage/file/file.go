// Package file stores the session as JSON documents in a directory, one file
// per key, so a session survives process restarts.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"quickcommerce/internal/model"
	"quickcommerce/internal/storage"
	"sync"
)

type Storage struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Storage, error) {
	const op = "file.New"

	if dir == "" {
		return nil, fmt.Errorf("%s: empty directory", op)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Storage{dir: dir}, nil
}

func (s *Storage) Dir() string { return s.dir }

func (s *Storage) GetTokens(_ context.Context) (*model.TokenPair, error) {
	var tokens model.TokenPair
	if err := s.read(storage.TokensKey, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (s *Storage) SaveTokens(_ context.Context, tokens model.TokenPair) error {
	return s.write(storage.TokensKey, tokens)
}

func (s *Storage) DeleteTokens(_ context.Context) error {
	return s.remove(storage.TokensKey)
}

func (s *Storage) GetUser(_ context.Context) (*model.User, error) {
	var user model.User
	if err := s.read(storage.UserKey, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) SaveUser(_ context.Context, user model.User) error {
	return s.write(storage.UserKey, user)
}

func (s *Storage) DeleteUser(_ context.Context) error {
	return s.remove(storage.UserKey)
}

func (s *Storage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Storage) read(key string, v any) error {
	s.mu.Lock()
	raw, err := os.ReadFile(s.path(key))
	s.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("file.read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, key, err)
	}
	return nil
}

// write replaces the file through a rename so readers never see half a value.
func (s *Storage) write(key string, v any) error {
	const op = "file.write"

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file.remove %s: %w", key, err)
	}
	return nil
}
