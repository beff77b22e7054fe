package tests

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net/http"
	"quickcommerce/internal/client"
	"quickcommerce/internal/mockapi"
	"quickcommerce/internal/model"
	"quickcommerce/internal/services/auth"
	"quickcommerce/internal/services/insights"
	"quickcommerce/internal/session"
	"quickcommerce/internal/storage/memory"
	"quickcommerce/internal/tests/mock"
	"quickcommerce/internal/token"
	"testing"
	"time"
)

const mockSecret = "test-secret"

func newMockClient(t *testing.T) (*client.Client, *session.Store, *mock.Navigator) {
	t.Helper()

	tokens := token.NewJWTManager(mockSecret, 15*time.Minute, time.Hour)
	transport := mockapi.New(tokens, mockapi.WithDelay(0))

	nav := &mock.Navigator{}
	sessions := session.New(memory.New(), session.WithNavigator(nav.Navigate))

	c, err := client.New("http://mock.local", sessions,
		client.WithHTTPClient(&http.Client{Transport: transport}))
	require.NoError(t, err)
	return c, sessions, nav
}

func TestMockMode_LoginAndSummary(t *testing.T) {
	c, sessions, _ := newMockClient(t)
	ctx := context.Background()

	user, err := auth.New(c, sessions, nil).Login(ctx, "test@example.com", "any")
	require.NoError(t, err)
	assert.Equal(t, mockapi.DefaultUser, *user)

	summary, err := insights.New(c, nil).Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4250.5, summary.TotalSpend)
	require.NotNil(t, summary.Budget)
	assert.Equal(t, float64(6000), summary.Budget.Set)
}

func TestMockMode_ExpiredAccessIsRefreshed(t *testing.T) {
	c, sessions, nav := newMockClient(t)
	ctx := context.Background()

	expired, err := token.NewJWTManager(mockSecret, -time.Minute, time.Hour).GenerateAccessToken(mockapi.DefaultUser)
	require.NoError(t, err)
	refresh, err := token.NewJWTManager(mockSecret, time.Minute, time.Hour).GenerateRefreshToken(mockapi.DefaultUser)
	require.NoError(t, err)

	require.NoError(t, sessions.SetTokens(ctx, model.TokenPair{Access: expired, Refresh: refresh}))
	require.NoError(t, sessions.SetUser(ctx, mockapi.DefaultUser))

	hm, err := insights.New(c, nil).Heatmap(ctx)
	require.NoError(t, err)
	assert.False(t, hm.Fallback)

	tokens := sessions.Tokens(ctx)
	require.NotNil(t, tokens)
	assert.NotEqual(t, expired, tokens.Access)
	assert.Equal(t, refresh, tokens.Refresh)
	assert.Equal(t, 0, nav.Calls())
}

func TestMockMode_ForgedRefreshExpiresSession(t *testing.T) {
	c, sessions, nav := newMockClient(t)
	ctx := context.Background()

	forged, err := token.NewJWTManager("other-secret", time.Minute, time.Hour).GenerateRefreshToken(mockapi.DefaultUser)
	require.NoError(t, err)

	require.NoError(t, sessions.SetTokens(ctx, model.TokenPair{Access: "garbage", Refresh: forged}))
	require.NoError(t, sessions.SetUser(ctx, mockapi.DefaultUser))

	_, err = insights.New(c, nil).Trends(ctx)
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	assert.Nil(t, sessions.Tokens(ctx))
	assert.Nil(t, sessions.User(ctx))
	assert.Equal(t, 1, nav.Calls())
}

func TestMockMode_WrongCredentials(t *testing.T) {
	c, sessions, _ := newMockClient(t)
	ctx := context.Background()

	_, err := auth.New(c, sessions, nil).Login(ctx, mockapi.WrongEmail, "x")
	require.Error(t, err)
	assert.Equal(t, "Invalid credentials", client.ErrorMessage(err))
	assert.Nil(t, sessions.Tokens(ctx))
}
