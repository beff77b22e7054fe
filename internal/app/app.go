package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	appgrpc "quickcommerce/internal/app/grpc"
	"quickcommerce/internal/client"
	"quickcommerce/internal/config"
	grpcauth "quickcommerce/internal/grpc/auth"
	"quickcommerce/internal/mockapi"
	"quickcommerce/internal/observability"
	redis2 "quickcommerce/internal/redis"
	"quickcommerce/internal/services/auth"
	"quickcommerce/internal/services/insights"
	"quickcommerce/internal/services/purchases"
	"quickcommerce/internal/services/settings"
	"quickcommerce/internal/session"
	"quickcommerce/internal/storage"
	"quickcommerce/internal/storage/file"
	"quickcommerce/internal/storage/memory"
	"quickcommerce/internal/token"
	"quickcommerce/pkg/client/redis"
)

const mockBaseURL = "http://mock.quickcommerce.local"

type App struct {
	Log       *slog.Logger
	Sessions  *session.Store
	Client    *client.Client
	Auth      *auth.Auth
	Insights  *insights.Insights
	Purchases *purchases.Purchases
	Settings  *settings.Settings

	closers []func(context.Context) error
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger, navigate session.Navigator) (*App, error) {
	const op = "app.New"

	a := &App{Log: log}

	instruments, shutdown, err := observability.Init(ctx, cfg.Telemetry, cfg.Env, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.OnClose(shutdown)

	backend, err := a.newStorage(ctx, cfg)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.Sessions = session.New(backend, session.WithNavigator(navigate), session.WithLogger(log))

	baseURL := cfg.API.BaseURL
	transport := http.DefaultTransport
	if cfg.API.UseMock {
		tokens := token.NewJWTManager(cfg.Token.MockSecret, cfg.Token.AccessTTL, cfg.Token.RefreshTTL)
		transport = mockapi.New(tokens, mockapi.WithDelay(cfg.API.MockDelay), mockapi.WithLogger(log))
		if baseURL == "" {
			baseURL = mockBaseURL
		}
		log.Info("using mock api")
	}
	if cfg.API.Breaker.Enabled {
		transport = client.NewBreakerTransport(transport, cfg.API.Breaker, log)
	}

	opts := []client.Option{
		client.WithHTTPClient(&http.Client{Transport: transport, Timeout: cfg.API.Timeout}),
		client.WithLogger(log),
		client.WithTracer(instruments.Tracer("quickcommerce/internal/client")),
		client.WithMeter(instruments.Meter("quickcommerce/internal/client")),
	}

	var authOpts []auth.Option
	if cfg.Auth.Transport == config.TransportGRPC {
		grpcApp, err := appgrpc.New(log, cfg.Auth.GRPCAddr)
		if err != nil {
			_ = a.Close(ctx)
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.OnClose(func(context.Context) error { return grpcApp.Close() })

		sso := grpcauth.New(grpcApp.AuthClient(), cfg.Auth.GRPCTimeout, deviceID(cfg.Auth.DeviceID), log)
		opts = append(opts, client.WithRefresher(sso))
		authOpts = append(authOpts, auth.WithPasswordLogin(sso))
	}

	api, err := client.New(baseURL, a.Sessions, opts...)
	if err != nil {
		_ = a.Close(ctx)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.Client = api
	a.Auth = auth.New(api, a.Sessions, log, authOpts...)
	a.Insights = insights.New(api, log)
	a.Purchases = purchases.New(api, log)
	a.Settings = settings.New(api)
	return a, nil
}

func (a *App) newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.Session.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.OnClose(func(context.Context) error { return rdb.Close() })
		return redis2.NewRepositoryRedis(rdb, cfg.Session.Namespace), nil
	default:
		return file.New(filepath.Join(cfg.Session.Path, cfg.Session.Namespace))
	}
}

// OnClose registers fn to run on Close.
func (a *App) OnClose(fn func(context.Context) error) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// Close releases connections and flushes telemetry, newest first.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// deviceID is stable per host unless configured.
func deviceID(configured string) string {
	if configured != "" {
		return configured
	}
	host, err := os.Hostname()
	if err != nil {
		return uuid.NewString()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("quickcommerce:"+host)).String()
}
