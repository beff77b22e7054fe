package suite

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/stretchr/testify/require"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	"quickcommerce/internal/services/auth"
	"quickcommerce/internal/services/insights"
	"quickcommerce/internal/services/purchases"
	"quickcommerce/internal/session"
	"quickcommerce/internal/storage"
	"quickcommerce/internal/storage/memory"
	"quickcommerce/internal/tests/mock"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	WrongEmail = "wrong@example.com"
	TakenEmail = "taken@example.com"
)

var TestUser = model.User{ID: "1", Name: "Test", Email: "test@example.com"}

// Suite runs the real client and session against a fake API server.
type Suite struct {
	*testing.T

	API      *FakeAPI
	Server   *httptest.Server
	// Storage is nil when WithStorage supplied the backend.
	Storage  *memory.Storage
	Sessions *session.Store
	Client   *client.Client

	Auth      *auth.Auth
	Insights  *insights.Insights
	Purchases *purchases.Purchases

	Navigator *mock.Navigator
}

type Option func(*options)

type options struct {
	backend storage.Storage
}

// WithStorage runs the session on st instead of a fresh memory backend.
func WithStorage(st storage.Storage) Option {
	return func(o *options) { o.backend = st }
}

func New(t *testing.T, opts ...Option) *Suite {
	t.Helper()

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	api := NewFakeAPI()
	server := httptest.NewServer(api)

	var mem *memory.Storage
	backend := o.backend
	if backend == nil {
		mem = memory.New()
		backend = mem
	}

	nav := &mock.Navigator{}
	sessions := session.New(backend, session.WithNavigator(nav.Navigate), session.WithLogger(log))

	c, err := client.New(server.URL, sessions,
		client.WithHTTPClient(server.Client()),
		client.WithLogger(log))
	require.NoError(t, err)

	s := &Suite{
		T:         t,
		API:       api,
		Server:    server,
		Storage:   mem,
		Sessions:  sessions,
		Client:    c,
		Auth:      auth.New(c, sessions, log),
		Insights:  insights.New(c, log),
		Purchases: purchases.New(c, log),
		Navigator: nav,
	}

	t.Cleanup(server.Close)
	return s
}

// SeedSession stores tokens and the test user as if a login had happened.
func (s *Suite) SeedSession(access, refresh string) {
	s.T.Helper()

	ctx := context.Background()
	require.NoError(s.T, s.Sessions.SetTokens(ctx, model.TokenPair{Access: access, Refresh: refresh}))
	require.NoError(s.T, s.Sessions.SetUser(ctx, TestUser))
}

// FakeAPI accepts exactly one access token and one refresh token at a time.
type FakeAPI struct {
	mu            sync.Mutex
	access        string
	refresh       string
	rotateRefresh bool
	refreshDelay  time.Duration
	issued        int

	calls       map[string]int
	authHeaders map[string][]string

	refreshCalls atomic.Int32
}

func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		access:      "valid-access",
		refresh:     "valid-refresh",
		calls:       make(map[string]int),
		authHeaders: make(map[string][]string),
	}
}

// SetTokens changes which tokens the server accepts.
func (f *FakeAPI) SetTokens(access, refresh string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access, f.refresh = access, refresh
}

func (f *FakeAPI) RotateRefresh(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rotateRefresh = on
}

func (f *FakeAPI) SetRefreshDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshDelay = d
}

func (f *FakeAPI) AccessToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.access
}

func (f *FakeAPI) RefreshCalls() int {
	return int(f.refreshCalls.Load())
}

// Calls returns how many requests hit "METHOD /path".
func (f *FakeAPI) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

// AuthHeaders returns the Authorization headers seen on route, in order.
func (f *FakeAPI) AuthHeaders(route string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders[route]...)
}

func (f *FakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.calls[route]++
	f.authHeaders[route] = append(f.authHeaders[route], r.Header.Get("Authorization"))
	f.mu.Unlock()

	switch route {
	case "POST /auth/login":
		f.login(w, r)
	case "POST /auth/register":
		f.register(w, r)
	case "POST /auth/refresh":
		f.refreshToken(w, r)
	case "GET /insights/summary":
		f.protected(w, r, model.Summary{TotalSpend: 4250.5, AvgOrderValue: 354.21, Budget: &model.Budget{Set: 6000, Percent: 71}})
	case "GET /insights/heatmap":
		f.protected(w, r, model.Heatmap{Matrix: [][]float64{{1, 2, 3}}})
	case "GET /insights/trends", "PUT /settings/profile", "DELETE /purchases/1":
		f.protected(w, r, map[string]string{"message": "ok"})
	case "POST /purchases/upload-csv":
		f.protected(w, r, model.UploadResult{Message: "ok", Inserted: 2, Errors: []string{}})
	case "GET /always-unauthorized":
		writeJSON(w, http.StatusUnauthorized, model.ErrorBody{Error: "Unauthorized"})
	case "GET /server-error":
		writeJSON(w, http.StatusInternalServerError, model.ErrorBody{Error: "boom", Status: 500})
	case "GET /not-found-text":
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no such route"))
	case "GET /html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>" + strings.Repeat("x", 200) + "</body></html>"))
	case "DELETE /empty":
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusNotFound, model.ErrorBody{Error: "Not found"})
	}
}

func (f *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var in model.LoginRequest
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Email == WrongEmail {
		writeJSON(w, http.StatusUnauthorized, model.ErrorBody{Error: "Invalid credentials"})
		return
	}

	f.mu.Lock()
	resp := model.AuthResponse{AccessToken: f.access, RefreshToken: f.refresh, User: &TestUser}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var in model.RegisterRequest
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Email == TakenEmail {
		writeJSON(w, http.StatusConflict, model.ErrorBody{Error: "User already exists"})
		return
	}

	user := model.User{ID: "2", Name: in.Name, Email: in.Email}
	f.mu.Lock()
	resp := model.AuthResponse{Message: "registered", AccessToken: f.access, RefreshToken: f.refresh, User: &user}
	f.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeAPI) refreshToken(w http.ResponseWriter, r *http.Request) {
	f.refreshCalls.Add(1)

	f.mu.Lock()
	delay := f.refreshDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if bearer(r) != f.refresh {
		writeJSON(w, http.StatusUnauthorized, model.ErrorBody{Error: "Invalid refresh token"})
		return
	}

	f.issued++
	f.access = fmt.Sprintf("access-%d", f.issued)
	resp := model.AuthResponse{AccessToken: f.access}
	if f.rotateRefresh {
		f.refresh = fmt.Sprintf("refresh-%d", f.issued)
		resp.RefreshToken = f.refresh
	}
	writeJSON(w, http.StatusOK, resp)
}

func (f *FakeAPI) protected(w http.ResponseWriter, r *http.Request, body any) {
	f.mu.Lock()
	ok := bearer(r) == f.access
	f.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, model.ErrorBody{Error: "Token expired"})
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
