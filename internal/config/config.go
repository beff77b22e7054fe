package config

import (
	"errors"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Config struct {
	Env       string          `yaml:"env" env:"ENV" env-default:"local"`
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Redis     StorageRedis    `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Token     TokenConfig     `yaml:"token"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type APIConfig struct {
	BaseURL   string        `yaml:"base_url" env:"API_BASE_URL" env-default:"https://quickcommerce-b.onrender.com"`
	UseMock   bool          `yaml:"use_mock" env:"USE_MOCK" env-default:"false"`
	MockDelay time.Duration `yaml:"mock_delay" env:"MOCK_DELAY" env-default:"500ms"`
	Timeout   time.Duration `yaml:"timeout" env:"API_TIMEOUT" env-default:"0s"`
	Breaker   BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker on the API transport.
type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled" env:"BREAKER_ENABLED" env-default:"true"`
	MaxRequests  uint32        `yaml:"max_requests" env-default:"1"`
	Interval     time.Duration `yaml:"interval" env-default:"30s"`
	Timeout      time.Duration `yaml:"timeout" env-default:"10s"`
	MinRequests  uint32        `yaml:"min_requests" env-default:"3"`
	FailureRatio float64       `yaml:"failure_ratio" env-default:"0.6"`
}

type SessionConfig struct {
	Backend   string `yaml:"backend" env:"SESSION_BACKEND" env-default:"file"`
	Path      string `yaml:"path" env:"SESSION_PATH"`
	Namespace string `yaml:"namespace" env:"SESSION_NAMESPACE" env-default:"default"`
}

type StorageRedis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Username string `yaml:"username" env:"REDIS_USERNAME"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	Attempts int    `yaml:"attempts" env:"REDIS_ATTEMPTS" env-default:"3"`
}

type AuthConfig struct {
	Transport   string        `yaml:"transport" env:"AUTH_TRANSPORT" env-default:"http"`
	GRPCAddr    string        `yaml:"grpc_addr" env:"AUTH_GRPC_ADDR" env-default:"localhost:44044"`
	GRPCTimeout time.Duration `yaml:"grpc_timeout" env:"AUTH_GRPC_TIMEOUT" env-default:"5s"`
	DeviceID    string        `yaml:"device_id" env:"AUTH_DEVICE_ID"`
}

// TokenConfig is used by the mock responder to mint and verify tokens.
type TokenConfig struct {
	MockSecret string        `yaml:"mock_secret" env:"TOKEN_MOCK_SECRET" env-default:"mock-secret"`
	AccessTTL  time.Duration `yaml:"access_ttl" env:"TOKEN_ACCESS_TTL" env-default:"15m"`
	RefreshTTL time.Duration `yaml:"refresh_ttl" env:"TOKEN_REFRESH_TTL" env-default:"168h"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" env:"TELEMETRY_ENABLED" env-default:"false"`
	ServiceName string `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"quickcommerce-cli"`
}

const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"

	TransportHTTP = "http"
	TransportGRPC = "grpc"
)

const envConfigPath = "CONFIG_PATH"

var instance *Config
var once sync.Once

// GetConfig loads the configuration once. An explicit path wins over
// CONFIG_PATH; env variables always override yaml values.
func GetConfig(path string) *Config {
	once.Do(func() {
		cfg, err := Load(path)
		if err != nil {
			desc, errDesc := cleanenv.GetDescription(&Config{}, nil)
			if errDesc == nil {
				slog.Info(desc)
			}
			slog.Error("failed to load config", slog.String("err", err.Error()))
			os.Exit(1)
		}
		instance = cfg
	})
	return instance
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(envConfigPath)
	}

	cfg := &Config{}

	// 1. yaml (optional)
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	// 2. env on top
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath()
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if !cfg.API.UseMock && strings.TrimSpace(cfg.API.BaseURL) == "" {
		return errors.New("api.base_url is required unless api.use_mock is set")
	}

	switch cfg.Session.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}

	switch cfg.Auth.Transport {
	case TransportHTTP:
	case TransportGRPC:
		if cfg.Auth.GRPCAddr == "" {
			return errors.New("auth.grpc_addr is required for the grpc transport")
		}
	default:
		return fmt.Errorf("unknown auth transport %q", cfg.Auth.Transport)
	}

	if cfg.Session.Namespace == "" {
		return errors.New("session.namespace is required")
	}
	return nil
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".quickcommerce"
	}
	return filepath.Join(dir, "quickcommerce")
}
