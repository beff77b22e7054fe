package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"quickcommerce/internal/model"
	"quickcommerce/internal/storage"
	"sync"
)

// Storage keeps the session in process memory. Values are held encoded, the
// way they would be on disk, so Put can plant arbitrary (even corrupt) data.
type Storage struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func New() *Storage {
	return &Storage{values: make(map[string][]byte)}
}

func (s *Storage) GetTokens(_ context.Context) (*model.TokenPair, error) {
	var tokens model.TokenPair
	if err := s.load(storage.TokensKey, &tokens); err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (s *Storage) SaveTokens(_ context.Context, tokens model.TokenPair) error {
	return s.store(storage.TokensKey, tokens)
}

func (s *Storage) DeleteTokens(_ context.Context) error {
	s.Delete(storage.TokensKey)
	return nil
}

func (s *Storage) GetUser(_ context.Context) (*model.User, error) {
	var user model.User
	if err := s.load(storage.UserKey, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) SaveUser(_ context.Context, user model.User) error {
	return s.store(storage.UserKey, user)
}

func (s *Storage) DeleteUser(_ context.Context) error {
	s.Delete(storage.UserKey)
	return nil
}

// Put sets a raw value.
func (s *Storage) Put(key string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), raw...)
}

func (s *Storage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *Storage) load(key string, v any) error {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrCorrupt, key, err)
	}
	return nil
}

func (s *Storage) store(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory.store: %w", err)
	}
	s.Put(key, raw)
	return nil
}
