package client_test

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"net/http"
	"net/http/httptest"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	"quickcommerce/internal/session"
	"quickcommerce/internal/storage/memory"
	mocks "quickcommerce/internal/tests/mock"
	"strings"
	"sync/atomic"
	"testing"
)

// protectedServer accepts only "fresh" as access token.
func protectedServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Token expired"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSession(t *testing.T, tokens *model.TokenPair, nav *mocks.Navigator) *session.Store {
	t.Helper()
	s := session.New(memory.New(), session.WithNavigator(nav.Navigate))
	if tokens != nil {
		require.NoError(t, s.SetTokens(context.Background(), *tokens))
	}
	return s
}

func TestClient_RefresherSuccessStoresUser(t *testing.T) {
	var hits atomic.Int32
	srv := protectedServer(t, &hits)
	nav := &mocks.Navigator{}
	sessions := newSession(t, &model.TokenPair{Access: "stale", Refresh: "r1"}, nav)

	refresher := mocks.NewMockRefresher()
	refresher.On("Refresh", mock.Anything, "r1").
		Return(&model.AuthResponse{AccessToken: "fresh", User: &model.User{ID: "7", Email: "a@b.co"}}, nil).
		Once()

	c, err := client.New(srv.URL, sessions, client.WithRefresher(refresher))
	require.NoError(t, err)

	var out struct{ OK bool }
	_, err = c.Get(context.Background(), "/x", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, &model.TokenPair{Access: "fresh", Refresh: "r1"}, sessions.Tokens(context.Background()))
	assert.Equal(t, model.UserID("7"), sessions.User(context.Background()).ID)
	refresher.AssertExpectations(t)
}

func TestClient_RefresherFailureExpiresSession(t *testing.T) {
	var hits atomic.Int32
	srv := protectedServer(t, &hits)
	nav := &mocks.Navigator{}
	sessions := newSession(t, &model.TokenPair{Access: "stale", Refresh: "r1"}, nav)

	refresher := mocks.NewMockRefresher()
	refresher.On("Refresh", mock.Anything, "r1").Return(nil, errors.New("rejected")).Once()

	c, err := client.New(srv.URL, sessions, client.WithRefresher(refresher))
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "/x", map[string]string{"a": "b"}, nil)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.Nil(t, sessions.Tokens(context.Background()))
	assert.Equal(t, 1, nav.Calls())
	assert.Equal(t, int32(1), hits.Load())
	refresher.AssertExpectations(t)
}

func TestClient_RefresherWithoutAccessTokenFails(t *testing.T) {
	var hits atomic.Int32
	srv := protectedServer(t, &hits)
	nav := &mocks.Navigator{}
	sessions := newSession(t, &model.TokenPair{Access: "stale", Refresh: "r1"}, nav)

	refresher := mocks.NewMockRefresher()
	refresher.On("Refresh", mock.Anything, "r1").Return(&model.AuthResponse{RefreshToken: "r2"}, nil).Once()

	c, err := client.New(srv.URL, sessions, client.WithRefresher(refresher))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.Equal(t, 1, nav.Calls())
}

func TestClient_SkipRefreshSurfacesUnauthorized(t *testing.T) {
	var hits atomic.Int32
	srv := protectedServer(t, &hits)
	nav := &mocks.Navigator{}
	sessions := newSession(t, &model.TokenPair{Access: "stale", Refresh: "r1"}, nav)

	refresher := mocks.NewMockRefresher()
	c, err := client.New(srv.URL, sessions, client.WithRefresher(refresher))
	require.NoError(t, err)

	_, err = c.Post(context.Background(), "/auth/login", model.LoginRequest{}, nil, client.SkipRefresh())
	assert.ErrorIs(t, err, &client.Error{Kind: client.KindHTTP, Status: http.StatusUnauthorized})
	assert.Equal(t, "stale", sessions.Tokens(context.Background()).Access)
	assert.Equal(t, 0, nav.Calls())
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestHTTPRefresher(t *testing.T) {
	var gotAuth, gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, gotPath, gotMethod = r.Header.Get("Authorization"), r.URL.Path, r.Method
		w.Header().Set("Content-Type", "application/json")
		switch strings.TrimPrefix(gotAuth, "Bearer ") {
		case "good":
			_, _ = w.Write([]byte(`{"access_token":"new","refresh_token":"rotated"}`))
		case "empty":
			_, _ = w.Write([]byte(`{"message":"no token"}`))
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid refresh token"}`))
		}
	}))
	t.Cleanup(srv.Close)

	r := client.NewHTTPRefresher(srv.URL+"/", srv.Client())
	ctx := context.Background()

	resp, err := r.Refresh(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, "new", resp.AccessToken)
	assert.Equal(t, "rotated", resp.RefreshToken)
	assert.Equal(t, "Bearer good", gotAuth)
	assert.Equal(t, client.RefreshPath, gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)

	_, err = r.Refresh(ctx, "empty")
	assert.ErrorIs(t, err, client.ErrNoAccessToken)

	_, err = r.Refresh(ctx, "bad")
	assert.ErrorIs(t, err, &client.Error{Kind: client.KindHTTP, Status: http.StatusUnauthorized})

	_, err = r.Refresh(ctx, "")
	assert.ErrorIs(t, err, client.ErrNoRefreshToken)
}

func TestNew_Validation(t *testing.T) {
	_, err := client.New("  ", session.New(memory.New()))
	assert.Error(t, err)

	_, err = client.New("http://x", nil)
	assert.Error(t, err)

	c, err := client.New("http://x/api/", session.New(memory.New()))
	require.NoError(t, err)
	assert.Equal(t, "http://x/api", c.BaseURL())
}

func TestClient_RotatedBeforeFlightSkipsRefresh(t *testing.T) {
	var hits atomic.Int32
	srv := protectedServer(t, &hits)
	nav := &mocks.Navigator{}

	// The request and the first staleness check see the old pair; by the time
	// the flight starts another refresh has rotated it.
	storage := mocks.NewMockStorage()
	storage.On("GetTokens", mock.Anything).Return(&model.TokenPair{Access: "stale", Refresh: "r1"}, nil).Times(2)
	storage.On("GetTokens", mock.Anything).Return(&model.TokenPair{Access: "fresh", Refresh: "r2"}, nil)
	sessions := session.New(storage, session.WithNavigator(nav.Navigate))

	refresher := mocks.NewMockRefresher()
	c, err := client.New(srv.URL, sessions, client.WithRefresher(refresher))
	require.NoError(t, err)

	var out struct{ OK bool }
	_, err = c.Get(context.Background(), "/x", &out)
	require.NoError(t, err)
	assert.True(t, out.OK)

	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, 0, nav.Calls())
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
	storage.AssertNotCalled(t, "DeleteTokens", mock.Anything)
}

func TestClient_LoggedOutBeforeFlightExpires(t *testing.T) {
	var hits atomic.Int32
	srv := protectedServer(t, &hits)
	nav := &mocks.Navigator{}

	storage := mocks.NewMockStorage()
	storage.On("GetTokens", mock.Anything).Return(&model.TokenPair{Access: "stale", Refresh: "r1"}, nil).Times(2)
	storage.On("GetTokens", mock.Anything).Return(nil, nil)
	storage.On("DeleteTokens", mock.Anything).Return(nil)
	storage.On("DeleteUser", mock.Anything).Return(nil)
	sessions := session.New(storage, session.WithNavigator(nav.Navigate))

	refresher := mocks.NewMockRefresher()
	c, err := client.New(srv.URL, sessions, client.WithRefresher(refresher))
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "/x", nil)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, nav.Calls())
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}
