package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	Backend       BackendConfig
	Session       SessionConfig
	Metrics       MetricsConfig
	HTTP          HTTPConfig
	Datasource    DatasourceConfig
	AI            AIConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

// BackendConfig is the client's view of the translation service.
type BackendConfig struct {
	BaseURL       string
	RegisterPath  string
	TranslatePath string
	APIKey        string
	// Timeout of zero leaves requests unbounded.
	Timeout time.Duration
}

type SessionConfig struct {
	UserID        string
	DefaultHost   string
	DefaultEngine string
	CopiedFlagTTL time.Duration
	HistoryFile   string
}

type MetricsConfig struct {
	Address string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatasourceConfig struct {
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	PingTimeout      time.Duration
	SchemaSampleRows int
}

type AIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
	// LogFile redirects the interactive client's logs away from the terminal.
	LogFile string
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("SQLINGO_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid SQLINGO_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	steps := []func() error{
		func() error { return applyString(lookup, "SQLINGO_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "SQLINGO_BACKEND_URL", &cfg.Backend.BaseURL) },
		func() error { return applyString(lookup, "SQLINGO_BACKEND_REGISTER_PATH", &cfg.Backend.RegisterPath) },
		func() error { return applyString(lookup, "SQLINGO_BACKEND_TRANSLATE_PATH", &cfg.Backend.TranslatePath) },
		func() error { return applyString(lookup, "SQLINGO_BACKEND_API_KEY", &cfg.Backend.APIKey) },
		func() error { return applyDuration(lookup, "SQLINGO_BACKEND_TIMEOUT", &cfg.Backend.Timeout) },
		func() error { return applyString(lookup, "SQLINGO_USER_ID", &cfg.Session.UserID) },
		func() error { return applyString(lookup, "SQLINGO_DEFAULT_HOST", &cfg.Session.DefaultHost) },
		func() error { return applyString(lookup, "SQLINGO_DEFAULT_ENGINE", &cfg.Session.DefaultEngine) },
		func() error { return applyDuration(lookup, "SQLINGO_COPIED_FLAG_TTL", &cfg.Session.CopiedFlagTTL) },
		func() error { return applyString(lookup, "SQLINGO_HISTORY_FILE", &cfg.Session.HistoryFile) },
		func() error { return applyString(lookup, "SQLINGO_METRICS_ADDR", &cfg.Metrics.Address) },
		func() error { return applyString(lookup, "SQLINGO_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "SQLINGO_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "SQLINGO_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "SQLINGO_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyInt(lookup, "SQLINGO_DATASOURCE_MAX_OPEN_CONNS", &cfg.Datasource.MaxOpenConns) },
		func() error { return applyInt(lookup, "SQLINGO_DATASOURCE_MAX_IDLE_CONNS", &cfg.Datasource.MaxIdleConns) },
		func() error {
			return applyDuration(lookup, "SQLINGO_DATASOURCE_CONN_MAX_LIFETIME", &cfg.Datasource.ConnMaxLifetime)
		},
		func() error { return applyDuration(lookup, "SQLINGO_DATASOURCE_PING_TIMEOUT", &cfg.Datasource.PingTimeout) },
		func() error { return applyInt(lookup, "SQLINGO_SCHEMA_SAMPLE_ROWS", &cfg.Datasource.SchemaSampleRows) },
		func() error { return applyString(lookup, "SQLINGO_AI_BASE_URL", &cfg.AI.BaseURL) },
		func() error { return applyString(lookup, "SQLINGO_AI_API_KEY", &cfg.AI.APIKey) },
		func() error { return applyString(lookup, "SQLINGO_AI_MODEL", &cfg.AI.Model) },
		func() error { return applyFloat(lookup, "SQLINGO_AI_TEMPERATURE", &cfg.AI.Temperature) },
		func() error { return applyDuration(lookup, "SQLINGO_AI_TIMEOUT", &cfg.AI.Timeout) },
		func() error { return applyBool(lookup, "SQLINGO_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "SQLINGO_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyString(lookup, "SQLINGO_LOG_FILE", &cfg.Observability.LogFile) },
		func() error { return applyBool(lookup, "SQLINGO_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "SQLINGO_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.Backend.BaseURL == "" {
		return Config{}, fmt.Errorf("backend url is required")
	}
	if cfg.Backend.Timeout < 0 {
		return Config{}, fmt.Errorf("invalid SQLINGO_BACKEND_TIMEOUT: must not be negative")
	}
	if cfg.Session.CopiedFlagTTL <= 0 {
		return Config{}, fmt.Errorf("invalid SQLINGO_COPIED_FLAG_TTL: must be positive")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "sqlingo"},
		Backend: BackendConfig{
			BaseURL:       "http://localhost:8000",
			RegisterPath:  "/items",
			TranslatePath: "/query",
		},
		Session: SessionConfig{
			DefaultHost:   "localhost:3308",
			DefaultEngine: "mysql",
			CopiedFlagTTL: 2 * time.Second,
		},
		HTTP: HTTPConfig{
			Address:      ":8000",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Datasource: DatasourceConfig{
			MaxOpenConns:     4,
			MaxIdleConns:     2,
			ConnMaxLifetime:  30 * time.Minute,
			PingTimeout:      5 * time.Second,
			SchemaSampleRows: 3,
		},
		AI: AIConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-5",
			Temperature: 0.1,
			Timeout:     30 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18000"
		cfg.Observability.LogLevel = slog.LevelWarn
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
