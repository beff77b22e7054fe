// Package client is the authenticated access layer to the insights API.
//
// Every call attaches the stored access token. A 401 triggers one refresh
// through the configured Refresher; on success the original request is
// replayed exactly once and its outcome returned as is, on failure the
// session is logged out and the call fails with ErrSessionExpired.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/singleflight"
	"io"
	"log/slog"
	"net/http"
	"quickcommerce/internal/model"
	"strings"
)

// SessionStore is the part of the session the client reads and updates.
type SessionStore interface {
	Tokens(ctx context.Context) *model.TokenPair
	SetTokens(ctx context.Context, tokens model.TokenPair) error
	SetUser(ctx context.Context, user model.User) error
	Logout(ctx context.Context)
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.AuthResponse, error)
}

// Doer sends HTTP requests; *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	baseURL   string
	http      Doer
	sessions  SessionStore
	refresher Refresher
	log       *slog.Logger
	tracer    trace.Tracer
	metrics   clientMetrics

	refreshGroup singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func WithTracer(tr trace.Tracer) Option {
	return func(c *Client) { c.tracer = tr }
}

func WithMeter(m metric.Meter) Option {
	return func(c *Client) { c.metrics = newClientMetrics(m) }
}

func New(baseURL string, sessions SessionStore, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api base URL is required")
	}
	if sessions == nil {
		return nil, errors.New("session store is required")
	}

	c := &Client{
		baseURL:  baseURL,
		sessions: sessions,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.tracer == nil {
		c.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if c.refresher == nil {
		c.refresher = NewHTTPRefresher(baseURL, c.http)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	headers     http.Header
	skipRefresh bool
}

// WithHeader adds a request header; it overrides the defaults.
func WithHeader(key, value string) CallOption {
	return func(o *callOptions) {
		if o.headers == nil {
			o.headers = make(http.Header)
		}
		o.headers.Set(key, value)
	}
}

// SkipRefresh makes a 401 surface as a plain HTTP error. Used for the auth
// endpoints, where 401 means bad credentials rather than an expired token.
func SkipRefresh() CallOption {
	return func(o *callOptions) { o.skipRefresh = true }
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodGet, path, nil, out, opts)
}

func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodPost, path, body, out, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodPut, path, body, out, opts)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) (*Response, error) {
	return c.call(ctx, http.MethodDelete, path, nil, out, opts)
}

// UploadBinary posts a multipart form. No JSON content type is defaulted;
// the multipart boundary type is used instead.
func (c *Client) UploadBinary(ctx context.Context, path string, form *Form, out any, opts ...CallOption) (*Response, error) {
	if form == nil {
		form = &Form{}
	}
	payload, contentType, err := form.encode()
	if err != nil {
		return nil, fmt.Errorf("client.UploadBinary: %w", err)
	}

	r := &request{
		method:      http.MethodPost,
		path:        path,
		body:        payload,
		contentType: contentType,
		opts:        applyCallOptions(opts),
	}
	return c.do(ctx, r, out)
}

func (c *Client) call(ctx context.Context, method, path string, body, out any, opts []CallOption) (*Response, error) {
	r := &request{
		method:      method,
		path:        path,
		contentType: "application/json",
		opts:        applyCallOptions(opts),
	}
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("client.%s %s: marshal body: %w", strings.ToLower(method), path, err)
		}
		r.body = payload
	}
	return c.do(ctx, r, out)
}

func applyCallOptions(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// request keeps everything needed to send the same call twice.
type request struct {
	method      string
	path        string
	body        []byte
	contentType string
	opts        callOptions
}

func (c *Client) do(ctx context.Context, r *request, out any) (*Response, error) {
	ctx, span := c.tracer.Start(ctx, "api "+r.method+" "+r.path, trace.WithAttributes(
		attribute.String("http.method", r.method),
		attribute.String("api.path", r.path),
	))
	defer span.End()

	used := c.accessToken(ctx)
	resp, err := c.send(ctx, r, used)
	if err != nil {
		return nil, c.handleError(ctx, span, r, err)
	}

	if resp.StatusCode == http.StatusUnauthorized && !r.opts.skipRefresh {
		drain(resp)
		span.AddEvent("access token rejected")

		if !c.refresh(ctx, used) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, c.handleError(ctx, span, r, ctxErr)
			}
			c.log.Info("refresh failed, logging out",
				slog.String("method", r.method),
				slog.String("path", r.path))
			c.sessions.Logout(ctx)
			c.metrics.recordSessionExpired(ctx)
			return nil, c.handleError(ctx, span, r, sessionExpired())
		}

		// Replay once; whatever comes back is the answer.
		resp, err = c.send(ctx, r, c.accessToken(ctx))
		if err != nil {
			return nil, c.handleError(ctx, span, r, err)
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	result, err := normalize(resp)
	if err != nil {
		return nil, c.handleError(ctx, span, r, err)
	}
	if err := result.Decode(out); err != nil {
		return nil, c.handleError(ctx, span, r, err)
	}
	return result, nil
}

func (c *Client) send(ctx context.Context, r *request, accessToken string) (*http.Response, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	for key, values := range r.opts.headers {
		req.Header[key] = values
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	c.log.Debug("api request",
		slog.String("method", r.method),
		slog.String("url", c.baseURL+r.path),
		slog.Bool("authenticated", accessToken != ""))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, networkUnavailable(err)
	}

	c.metrics.recordRequest(ctx, r.method, resp.StatusCode)
	c.log.Debug("api response",
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.Int("status", resp.StatusCode))

	return resp, nil
}

func (c *Client) accessToken(ctx context.Context) string {
	if tokens := c.sessions.Tokens(ctx); tokens != nil {
		return tokens.Access
	}
	return ""
}

func (c *Client) handleError(ctx context.Context, span trace.Span, r *request, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	level := slog.LevelWarn
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Kind == KindHTTP {
		level = slog.LevelDebug
	}
	attrs := []slog.Attr{
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.String("error", err.Error()),
	}
	if apiErr != nil && apiErr.Diagnostic != "" {
		attrs = append(attrs, slog.String("diagnostic", apiErr.Diagnostic))
	}
	c.log.LogAttrs(ctx, level, "api call failed", attrs...)
	return err
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
