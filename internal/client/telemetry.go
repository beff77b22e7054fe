package client

import (
	"context"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const tracerName = "quickcommerce/internal/client"

type clientMetrics struct {
	requests        metric.Int64Counter
	refreshes       metric.Int64Counter
	sessionsExpired metric.Int64Counter
}

func newClientMetrics(m metric.Meter) clientMetrics {
	if m == nil {
		return clientMetrics{}
	}
	requests, _ := m.Int64Counter("api.client.requests", metric.WithDescription("Number of API round trips"))
	refreshes, _ := m.Int64Counter("api.client.refreshes", metric.WithDescription("Number of token refresh attempts"))
	expired, _ := m.Int64Counter("api.client.sessions_expired", metric.WithDescription("Number of forced logouts"))
	return clientMetrics{requests: requests, refreshes: refreshes, sessionsExpired: expired}
}

func (m clientMetrics) recordRequest(ctx context.Context, method string, status int) {
	if m.requests != nil {
		m.requests.Add(ctx, 1, metric.WithAttributes(
			attribute.String("http.method", method),
			attribute.Int("http.status_code", status),
		))
	}
}

func (m clientMetrics) recordRefresh(ctx context.Context, ok bool) {
	if m.refreshes != nil {
		m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", ok)))
	}
}

func (m clientMetrics) recordSessionExpired(ctx context.Context) {
	if m.sessionsExpired != nil {
		m.sessionsExpired.Add(ctx, 1)
	}
}
