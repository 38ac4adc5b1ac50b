package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("sqlingo", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Fatalf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RegisterPath != "/items" || cfg.Backend.TranslatePath != "/query" {
		t.Fatalf("Backend paths = %q %q", cfg.Backend.RegisterPath, cfg.Backend.TranslatePath)
	}
	if cfg.Backend.Timeout != 0 {
		t.Fatalf("Backend.Timeout = %s, want no timeout", cfg.Backend.Timeout)
	}
	if cfg.Session.DefaultHost != "localhost:3308" {
		t.Fatalf("Session.DefaultHost = %q", cfg.Session.DefaultHost)
	}
	if cfg.Session.DefaultEngine != "mysql" {
		t.Fatalf("Session.DefaultEngine = %q", cfg.Session.DefaultEngine)
	}
	if cfg.Session.CopiedFlagTTL != 2*time.Second {
		t.Fatalf("Session.CopiedFlagTTL = %s", cfg.Session.CopiedFlagTTL)
	}
	if cfg.HTTP.Address != ":8000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Datasource.SchemaSampleRows != 3 {
		t.Fatalf("Datasource.SchemaSampleRows = %d", cfg.Datasource.SchemaSampleRows)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.AI.Model != "gpt-5" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("sqlingo-server", mapLookup(map[string]string{"SQLINGO_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Service.Name != "sqlingo-server" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLINGO_PROFILE":                      "test",
		"SQLINGO_SERVICE_NAME":                 "sqlingo-custom",
		"SQLINGO_BACKEND_URL":                  "http://backend:9000",
		"SQLINGO_BACKEND_REGISTER_PATH":        "/v2/items",
		"SQLINGO_BACKEND_TRANSLATE_PATH":       "/v2/query",
		"SQLINGO_BACKEND_API_KEY":              "k1",
		"SQLINGO_BACKEND_TIMEOUT":              "45s",
		"SQLINGO_USER_ID":                      "manas",
		"SQLINGO_DEFAULT_HOST":                 "db:5432",
		"SQLINGO_DEFAULT_ENGINE":               "postgresql",
		"SQLINGO_COPIED_FLAG_TTL":              "500ms",
		"SQLINGO_HISTORY_FILE":                 "/tmp/sqlingo_history",
		"SQLINGO_METRICS_ADDR":                 ":9100",
		"SQLINGO_HTTP_ADDR":                    ":9999",
		"SQLINGO_HTTP_READ_TIMEOUT":            "2s",
		"SQLINGO_HTTP_WRITE_TIMEOUT":           "3s",
		"SQLINGO_DATASOURCE_MAX_OPEN_CONNS":    "9",
		"SQLINGO_DATASOURCE_MAX_IDLE_CONNS":    "8",
		"SQLINGO_DATASOURCE_CONN_MAX_LIFETIME": "1h",
		"SQLINGO_DATASOURCE_PING_TIMEOUT":      "7s",
		"SQLINGO_SCHEMA_SAMPLE_ROWS":           "11",
		"SQLINGO_AI_BASE_URL":                  "https://api.example.com",
		"SQLINGO_AI_API_KEY":                   "secret-key",
		"SQLINGO_AI_MODEL":                     "gpt-5.2",
		"SQLINGO_AI_TEMPERATURE":               "0.3",
		"SQLINGO_AI_TIMEOUT":                   "21s",
		"SQLINGO_LOG_LEVEL":                    "error",
		"SQLINGO_LOG_JSON":                     "false",
		"SQLINGO_LOG_FILE":                     "/tmp/sqlingo.log",
		"SQLINGO_AUTH_REQUIRED":                "true",
		"SQLINGO_AUTH_STATIC_KEYS":             "k1:manas",
	})
	cfg, err := Load("sqlingo", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "sqlingo-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.Backend.BaseURL != "http://backend:9000" {
		t.Fatalf("Backend.BaseURL = %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.RegisterPath != "/v2/items" || cfg.Backend.TranslatePath != "/v2/query" {
		t.Fatalf("Backend paths = %q %q", cfg.Backend.RegisterPath, cfg.Backend.TranslatePath)
	}
	if cfg.Backend.APIKey != "k1" {
		t.Fatalf("Backend.APIKey = %q", cfg.Backend.APIKey)
	}
	if cfg.Backend.Timeout != 45*time.Second {
		t.Fatalf("Backend.Timeout = %s", cfg.Backend.Timeout)
	}
	if cfg.Session.UserID != "manas" {
		t.Fatalf("Session.UserID = %q", cfg.Session.UserID)
	}
	if cfg.Session.DefaultHost != "db:5432" || cfg.Session.DefaultEngine != "postgresql" {
		t.Fatalf("Session defaults = %q %q", cfg.Session.DefaultHost, cfg.Session.DefaultEngine)
	}
	if cfg.Session.CopiedFlagTTL != 500*time.Millisecond {
		t.Fatalf("Session.CopiedFlagTTL = %s", cfg.Session.CopiedFlagTTL)
	}
	if cfg.Session.HistoryFile != "/tmp/sqlingo_history" {
		t.Fatalf("Session.HistoryFile = %q", cfg.Session.HistoryFile)
	}
	if cfg.Metrics.Address != ":9100" {
		t.Fatalf("Metrics.Address = %q", cfg.Metrics.Address)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second || cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP timeouts = %s %s", cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout)
	}
	if cfg.Datasource.MaxOpenConns != 9 || cfg.Datasource.MaxIdleConns != 8 {
		t.Fatalf("Datasource conns = %d %d", cfg.Datasource.MaxOpenConns, cfg.Datasource.MaxIdleConns)
	}
	if cfg.Datasource.ConnMaxLifetime != time.Hour {
		t.Fatalf("Datasource.ConnMaxLifetime = %s", cfg.Datasource.ConnMaxLifetime)
	}
	if cfg.Datasource.PingTimeout != 7*time.Second {
		t.Fatalf("Datasource.PingTimeout = %s", cfg.Datasource.PingTimeout)
	}
	if cfg.Datasource.SchemaSampleRows != 11 {
		t.Fatalf("Datasource.SchemaSampleRows = %d", cfg.Datasource.SchemaSampleRows)
	}
	if cfg.AI.BaseURL != "https://api.example.com" || cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI = %#v", cfg.AI)
	}
	if cfg.AI.Model != "gpt-5.2" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON = true, want false")
	}
	if cfg.Observability.LogFile != "/tmp/sqlingo.log" {
		t.Fatalf("LogFile = %q", cfg.Observability.LogFile)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required = false, want true")
	}
	if cfg.Auth.StaticKeys != "k1:manas" {
		t.Fatalf("StaticKeys = %q", cfg.Auth.StaticKeys)
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"SQLINGO_PROFILE": "oops"},
		{"SQLINGO_BACKEND_TIMEOUT": "NaN"},
		{"SQLINGO_BACKEND_TIMEOUT": "-1s"},
		{"SQLINGO_BACKEND_URL": "  "},
		{"SQLINGO_COPIED_FLAG_TTL": "0s"},
		{"SQLINGO_HTTP_READ_TIMEOUT": "NaN"},
		{"SQLINGO_DATASOURCE_MAX_OPEN_CONNS": "oops"},
		{"SQLINGO_SCHEMA_SAMPLE_ROWS": "oops"},
		{"SQLINGO_AI_TEMPERATURE": "bad"},
		{"SQLINGO_AUTH_REQUIRED": "not-bool"},
		{"SQLINGO_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("sqlingo", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
