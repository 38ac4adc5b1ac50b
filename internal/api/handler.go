package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sqlingo/sqlingo/internal/config"
	"github.com/sqlingo/sqlingo/internal/datasource"
	"github.com/sqlingo/sqlingo/internal/nl2sql"
	"github.com/sqlingo/sqlingo/internal/observability"
	"github.com/sqlingo/sqlingo/internal/registry"
)

const Version = "1.0.0"

type ReadinessCheck func(ctx context.Context) error

// Opener connects to a user database.
type Opener func(ctx context.Context, target datasource.Target) (*datasource.Source, error)

// Introspector reads the schema context of an open database.
type Introspector func(ctx context.Context, db datasource.Querier, engine, database string, sampleRows int) ([]nl2sql.TableContext, error)

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Registry          *registry.Registry
	Open              Opener
	Introspect        Introspector
	Translator        nl2sql.Translator
	SchemaSampleRows  int
	Now               func() time.Time
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	if deps.Registry == nil {
		deps.Registry = registry.New()
	}
	if deps.Open == nil {
		pool := datasource.PoolConfig{
			MaxOpenConns:    cfg.Datasource.MaxOpenConns,
			MaxIdleConns:    cfg.Datasource.MaxIdleConns,
			ConnMaxLifetime: cfg.Datasource.ConnMaxLifetime,
			PingTimeout:     cfg.Datasource.PingTimeout,
		}
		deps.Open = func(ctx context.Context, target datasource.Target) (*datasource.Source, error) {
			return datasource.Open(ctx, target, pool)
		}
	}
	if deps.Introspect == nil {
		deps.Introspect = datasource.Introspect
	}
	if deps.SchemaSampleRows == 0 {
		deps.SchemaSampleRows = cfg.Datasource.SchemaSampleRows
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Welcome to the SQLingo API",
			"version": Version,
			"docs":    "/docs",
		})
	})

	mux.HandleFunc("GET /docs", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service": cfg.Service.Name,
			"endpoints": []map[string]string{
				{"method": "POST", "path": "/items", "summary": "register a database connection for a user"},
				{"method": "POST", "path": "/query", "summary": "translate a question into SQL"},
				{"method": "GET", "path": "/health", "summary": "liveness"},
				{"method": "GET", "path": "/ready", "summary": "readiness"},
				{"method": "GET", "path": "/metrics", "summary": "prometheus metrics"},
			},
		})
	})

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": deps.Now().UTC(),
		})
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness != nil {
			timeout := deps.DependencyTimeout
			if timeout <= 0 {
				timeout = 2 * time.Second
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			if err := deps.Readiness(ctx); err != nil {
				writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":                 "ready",
			"registered_connections": deps.Registry.Len(),
			"translator_configured":  deps.Translator != nil,
		})
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("POST /items", func(w http.ResponseWriter, r *http.Request) {
		handleRegister(deps, w, r)
	})
	protected.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		handleTranslate(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("POST /items", protectedHandler)
	mux.Handle("POST /query", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		corsMiddleware,
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

// corsMiddleware lets browser frontends call the API from any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		header.Set("Access-Control-Allow-Origin", "*")
		header.Set("Access-Control-Allow-Headers", "Content-Type, X-API-Key, Authorization, "+observability.TraceHeader)
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Expose-Headers", observability.TraceHeader)
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError keeps "detail" as a plain string so clients can show it as is.
func writeError(ctx context.Context, w http.ResponseWriter, status int, code, detail string, retryable bool, extra map[string]any) {
	payload := map[string]any{
		"detail":     detail,
		"error_code": code,
		"retryable":  retryable,
		"trace_id":   observability.TraceIDFromContext(ctx),
	}
	if len(extra) > 0 {
		payload["context"] = extra
	}
	writeJSON(w, status, payload)
}
