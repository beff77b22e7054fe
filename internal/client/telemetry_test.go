package client_test

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"net/http"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	mocks "quickcommerce/internal/tests/mock"
	"sync/atomic"
	"testing"
)

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	want := attribute.NewSet(attrs...)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if dp.Attributes.Equals(&want) {
					return dp.Value
				}
			}
		}
	}
	return 0
}

func TestClient_RecordsRefreshMetrics(t *testing.T) {
	ctx := context.Background()
	var hits atomic.Int32
	srv := protectedServer(t, &hits)
	nav := &mocks.Navigator{}
	sessions := newSession(t, &model.TokenPair{Access: "stale", Refresh: "r1"}, nav)

	refresher := mocks.NewMockRefresher()
	refresher.On("Refresh", mock.Anything, "r1").Return(&model.AuthResponse{AccessToken: "fresh"}, nil).Once()
	refresher.On("Refresh", mock.Anything, "r9").Return(nil, errors.New("rejected")).Once()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(ctx) })

	c, err := client.New(srv.URL, sessions,
		client.WithRefresher(refresher),
		client.WithMeter(provider.Meter("test")))
	require.NoError(t, err)

	// 401, refresh, replay
	_, err = c.Get(ctx, "/x", nil)
	require.NoError(t, err)

	// 401, failed refresh, logout
	require.NoError(t, sessions.SetTokens(ctx, model.TokenPair{Access: "old", Refresh: "r9"}))
	_, err = c.Get(ctx, "/x", nil)
	require.ErrorIs(t, err, client.ErrSessionExpired)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(1), counterValue(t, rm, "api.client.refreshes", attribute.Bool("success", true)))
	assert.Equal(t, int64(1), counterValue(t, rm, "api.client.refreshes", attribute.Bool("success", false)))
	assert.Equal(t, int64(1), counterValue(t, rm, "api.client.sessions_expired"))
	assert.Equal(t, int64(2), counterValue(t, rm, "api.client.requests",
		attribute.String("http.method", http.MethodGet),
		attribute.Int("http.status_code", http.StatusUnauthorized)))
	assert.Equal(t, int64(1), counterValue(t, rm, "api.client.requests",
		attribute.String("http.method", http.MethodGet),
		attribute.Int("http.status_code", http.StatusOK)))
	assert.Equal(t, 1, nav.Calls())
	refresher.AssertExpectations(t)
}
