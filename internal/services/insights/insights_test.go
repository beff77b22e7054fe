package insights

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"net/http"
	"quickcommerce/internal/analytics"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	mocks "quickcommerce/internal/tests/mock"
	"testing"
	"time"
)

func matrix(days, hours int) [][]float64 {
	m := make([][]float64, days)
	for d := range m {
		m[d] = make([]float64, hours)
	}
	return m
}

func heatmapReturns(api *mocks.MockAPI, m [][]float64) {
	api.On("Get", mock.Anything, HeatmapPath, mock.Anything).
		Run(func(args mock.Arguments) {
			*args.Get(2).(*model.Heatmap) = model.Heatmap{Matrix: m}
		}).
		Return(&client.Response{Status: http.StatusOK}, nil).
		Once()
}

func TestHeatmap(t *testing.T) {
	api := mocks.NewMockAPI()
	i := New(api, nil)

	want := matrix(HeatmapDays, HeatmapHours)
	want[2][20] = 450
	heatmapReturns(api, want)

	res, err := i.Heatmap(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Fallback)
	assert.Equal(t, want, res.Matrix)
}

func TestHeatmap_Fallback(t *testing.T) {
	tests := []struct {
		name  string
		setup func(api *mocks.MockAPI)
	}{
		{
			name:  "bad shape",
			setup: func(api *mocks.MockAPI) { heatmapReturns(api, matrix(1, 3)) },
		},
		{
			name: "server error",
			setup: func(api *mocks.MockAPI) {
				api.On("Get", mock.Anything, HeatmapPath, mock.Anything).
					Return(nil, &client.Error{Kind: client.KindHTTP, Status: http.StatusInternalServerError}).
					Once()
			},
		},
		{
			name: "network",
			setup: func(api *mocks.MockAPI) {
				api.On("Get", mock.Anything, HeatmapPath, mock.Anything).
					Return(nil, client.ErrNetworkUnavailable).
					Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mocks.NewMockAPI()
			tt.setup(api)

			res, err := New(api, nil).Heatmap(context.Background())
			require.NoError(t, err)
			assert.True(t, res.Fallback)
			require.NoError(t, validateHeatmap(res.Matrix))
		})
	}
}

func TestHeatmap_SessionExpired(t *testing.T) {
	api := mocks.NewMockAPI()
	api.On("Get", mock.Anything, HeatmapPath, mock.Anything).Return(nil, client.ErrSessionExpired).Once()

	_, err := New(api, nil).Heatmap(context.Background())
	assert.ErrorIs(t, err, client.ErrSessionExpired)
}

func TestHeatmap_Cancelled(t *testing.T) {
	api := mocks.NewMockAPI()
	api.On("Get", mock.Anything, HeatmapPath, mock.Anything).Return(nil, context.Canceled).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(api, nil).Heatmap(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFallbackHeatmap(t *testing.T) {
	m := FallbackHeatmap()
	require.NoError(t, validateHeatmap(m))
	for _, row := range m {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 600.0)
			assert.Equal(t, float64(int(v)), v)
		}
	}
}

func TestDashboard_Demo(t *testing.T) {
	api := mocks.NewMockAPI()
	i := New(api, nil)
	i.now = func() time.Time { return time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC) }
	heatmapReturns(api, matrix(HeatmapDays, HeatmapHours))

	d, err := i.Dashboard(context.Background(), &model.User{Email: analytics.DemoEmail})
	require.NoError(t, err)

	assert.True(t, d.Demo)
	require.NotNil(t, d.Nutrition)
	assert.Equal(t, 5490, d.Nutrition.Calories)
	assert.Equal(t, "418g", d.KPIs[3].Value)
	assert.Len(t, d.Expiring, 2)
	assert.NotEmpty(t, d.Cart)
	assert.False(t, d.Heatmap.Fallback)
	api.AssertNotCalled(t, "Get", mock.Anything, SummaryPath, mock.Anything)
}

func TestDashboard_Regular(t *testing.T) {
	api := mocks.NewMockAPI()
	i := New(api, nil)

	api.On("Get", mock.Anything, SummaryPath, mock.Anything).
		Run(func(args mock.Arguments) {
			*args.Get(2).(*model.Summary) = model.Summary{TotalSpend: 100, AvgOrderValue: 50}
		}).
		Return(&client.Response{Status: http.StatusOK}, nil).
		Once()
	heatmapReturns(api, matrix(HeatmapDays, HeatmapHours))

	d, err := i.Dashboard(context.Background(), &model.User{Email: "test@example.com"})
	require.NoError(t, err)
	assert.False(t, d.Demo)
	assert.Equal(t, "₹100", d.KPIs[0].Value)
	assert.Equal(t, "Not set", d.KPIs[2].Value)
	assert.Nil(t, d.Nutrition)
}

func TestDashboard_SummaryFailureKeepsHeatmap(t *testing.T) {
	api := mocks.NewMockAPI()
	i := New(api, nil)

	api.On("Get", mock.Anything, SummaryPath, mock.Anything).Return(nil, errors.New("boom")).Once()
	heatmapReturns(api, matrix(HeatmapDays, HeatmapHours))

	d, err := i.Dashboard(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, d.KPIs)
	assert.NotNil(t, d.Heatmap)
}

func TestDashboard_SessionExpired(t *testing.T) {
	api := mocks.NewMockAPI()
	api.On("Get", mock.Anything, SummaryPath, mock.Anything).Return(nil, client.ErrSessionExpired).Once()

	_, err := New(api, nil).Dashboard(context.Background(), &model.User{Email: "test@example.com"})
	assert.ErrorIs(t, err, client.ErrSessionExpired)
	api.AssertNotCalled(t, "Get", mock.Anything, HeatmapPath, mock.Anything)
}
