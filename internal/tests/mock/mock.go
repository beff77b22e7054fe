package mock

import (
	"context"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	"sync"
	"time"
)

// ===================== STORAGE =====================

type MockStorage struct {
	mock.Mock
}

func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

func (m *MockStorage) GetTokens(ctx context.Context) (*model.TokenPair, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenPair), args.Error(1)
}

func (m *MockStorage) SaveTokens(ctx context.Context, tokens model.TokenPair) error {
	args := m.Called(ctx, tokens)
	return args.Error(0)
}

func (m *MockStorage) DeleteTokens(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) GetUser(ctx context.Context) (*model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockStorage) SaveUser(ctx context.Context, user model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStorage) DeleteUser(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ===================== REFRESHER =====================

type MockRefresher struct {
	mock.Mock
}

func NewMockRefresher() *MockRefresher {
	return &MockRefresher{}
}

func (m *MockRefresher) Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthResponse), args.Error(1)
}

// ===================== API =====================

// MockAPI stands in for *client.Client in the service tests.
type MockAPI struct {
	mock.Mock
}

func NewMockAPI() *MockAPI {
	return &MockAPI{}
}

func (m *MockAPI) Get(ctx context.Context, path string, out any, opts ...client.CallOption) (*client.Response, error) {
	args := m.Called(ctx, path, out)
	return response(args)
}

func (m *MockAPI) Post(ctx context.Context, path string, body, out any, opts ...client.CallOption) (*client.Response, error) {
	args := m.Called(ctx, path, body, out)
	return response(args)
}

func (m *MockAPI) Put(ctx context.Context, path string, body, out any, opts ...client.CallOption) (*client.Response, error) {
	args := m.Called(ctx, path, body, out)
	return response(args)
}

func (m *MockAPI) UploadBinary(ctx context.Context, path string, form *client.Form, out any, opts ...client.CallOption) (*client.Response, error) {
	args := m.Called(ctx, path, form, out)
	return response(args)
}

func response(args mock.Arguments) (*client.Response, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Response), args.Error(1)
}

// ===================== PASSWORD LOGIN =====================

type MockPasswordLogin struct {
	mock.Mock
}

func NewMockPasswordLogin() *MockPasswordLogin {
	return &MockPasswordLogin{}
}

func (m *MockPasswordLogin) Login(ctx context.Context, email, password string) (*model.TokenPair, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TokenPair), args.Error(1)
}

// ===================== REDIS CLIENT =====================

type MockRedisClient struct {
	mock.Mock
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{}
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return redis.NewStatusResult("OK", args.Error(0))
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return redis.NewStringResult(args.String(0), args.Error(1))
}

func (m *MockRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

// ===================== NAVIGATOR =====================

// Navigator counts how often the session asked for the login view.
type Navigator struct {
	mu    sync.Mutex
	calls int
}

func (n *Navigator) Navigate() {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

func (n *Navigator) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}
