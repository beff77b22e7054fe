package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"quickcommerce/internal/analytics"
	"quickcommerce/internal/client"
	"quickcommerce/internal/model"
	"time"
)

const (
	SummaryPath = "/insights/summary"
	HeatmapPath = "/insights/heatmap"
	TrendsPath  = "/insights/trends"

	HeatmapDays  = 7
	HeatmapHours = 24
)

var ErrBadHeatmap = errors.New("heatmap is not a 7x24 matrix")

type API interface {
	Get(ctx context.Context, path string, out any, opts ...client.CallOption) (*client.Response, error)
}

type Insights struct {
	api API
	log *slog.Logger
	now func() time.Time
}

func New(api API, log *slog.Logger) *Insights {
	if log == nil {
		log = slog.Default()
	}
	return &Insights{api: api, log: log, now: time.Now}
}

func (i *Insights) Summary(ctx context.Context) (*model.Summary, error) {
	const op = "insights.Summary"

	var s model.Summary
	if _, err := i.api.Get(ctx, SummaryPath, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}

type HeatmapResult struct {
	Matrix [][]float64
	// Fallback is set when Matrix was generated locally because the API
	// call failed.
	Fallback bool
}

// Heatmap loads the weekday by hour spend matrix. Any failure other than an
// expired session is replaced by a generated matrix.
func (i *Insights) Heatmap(ctx context.Context) (*HeatmapResult, error) {
	const op = "insights.Heatmap"

	var hm model.Heatmap
	_, err := i.api.Get(ctx, HeatmapPath, &hm)
	if err == nil {
		err = validateHeatmap(hm.Matrix)
	}
	if err == nil {
		return &HeatmapResult{Matrix: hm.Matrix}, nil
	}

	if errors.Is(err, client.ErrSessionExpired) || ctx.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	i.log.Warn("heatmap unavailable, using generated data", slog.String("error", err.Error()))
	return &HeatmapResult{Matrix: FallbackHeatmap(), Fallback: true}, nil
}

func (i *Insights) Trends(ctx context.Context) (*model.Trends, error) {
	const op = "insights.Trends"

	var t model.Trends
	if _, err := i.api.Get(ctx, TrendsPath, &t); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &t, nil
}

func validateHeatmap(m [][]float64) error {
	if len(m) != HeatmapDays {
		return ErrBadHeatmap
	}
	for _, row := range m {
		if len(row) != HeatmapHours {
			return ErrBadHeatmap
		}
	}
	return nil
}

// FallbackHeatmap returns random whole values in [0, 600].
func FallbackHeatmap() [][]float64 {
	m := make([][]float64, HeatmapDays)
	for d := range m {
		m[d] = make([]float64, HeatmapHours)
		for h := range m[d] {
			m[d][h] = float64(rand.IntN(601))
		}
	}
	return m
}

// Dashboard is everything the dashboard view shows.
type Dashboard struct {
	KPIs      []analytics.KPI
	Heatmap   *HeatmapResult
	Demo      bool
	Nutrition *analytics.Nutrition
	Expiring  []analytics.Expiry
	Cart      []analytics.CartItem
}

// Dashboard builds the view for user. The showcase account gets demo data
// instead of the server summary; the heatmap always comes from the API.
func (i *Insights) Dashboard(ctx context.Context, user *model.User) (*Dashboard, error) {
	const op = "insights.Dashboard"

	d := &Dashboard{}

	if user != nil && analytics.IsDemoUser(user.Email) {
		week := analytics.Demo(i.now())
		n := analytics.CalculateNutrition(week.Purchases)

		d.Demo = true
		d.KPIs = analytics.DemoKPIs(week)
		d.Nutrition = &n
		d.Expiring = analytics.ExpiringWithin(analytics.PredictExpiry(week.Purchases, i.now()), 5)
		d.Cart = analytics.SmartCart(week.Purchases)
	} else {
		s, err := i.Summary(ctx)
		if err != nil {
			if errors.Is(err, client.ErrSessionExpired) {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			i.log.Warn("summary unavailable", slog.String("error", err.Error()))
		} else {
			d.KPIs = analytics.SummaryKPIs(*s)
		}
	}

	hm, err := i.Heatmap(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.Heatmap = hm
	return d, nil
}
