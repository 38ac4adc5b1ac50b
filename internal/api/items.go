package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/sqlingo/sqlingo/internal/auth"
	"github.com/sqlingo/sqlingo/internal/datasource"
	"github.com/sqlingo/sqlingo/internal/observability"
	"github.com/sqlingo/sqlingo/internal/registry"
)

const maxFieldLength = 100

type registerRequest struct {
	UserID   string `json:"userId"`
	Link     string `json:"link"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
	Type     string `json:"type"`
}

type field struct {
	name  string
	value string
}

// validateFields checks each value is between 1 and maxFieldLength
// characters and reports the first one that is not.
func validateFields(fields ...field) error {
	for _, f := range fields {
		n := utf8.RuneCountInString(f.value)
		if n < 1 || n > maxFieldLength {
			return fmt.Errorf("%s must be between 1 and %d characters", f.name, maxFieldLength)
		}
	}
	return nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func handleRegister(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "INVALID_JSON", err.Error(), false, nil)
		return
	}
	if err := validateFields(
		field{"userId", req.UserID},
		field{"link", req.Link},
		field{"username", req.Username},
		field{"password", req.Password},
		field{"database", req.Database},
		field{"type", req.Type},
	); err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), false, nil)
		return
	}
	if !auth.Authorize(r.Context(), req.UserID) {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", "api key may not act for this user", false, nil)
		return
	}

	engine, err := datasource.NormalizeEngine(req.Type)
	if err != nil {
		observability.ObserveRegistration("unsupported", observability.OutcomeInvalid)
		writeError(r.Context(), w, http.StatusBadRequest, "UNSUPPORTED_DATABASE", err.Error(), false, nil)
		return
	}

	source, err := deps.Open(r.Context(), datasource.Target{
		Engine:   engine,
		Host:     req.Link,
		Username: req.Username,
		Password: req.Password,
		Database: req.Database,
	})
	if err != nil {
		observability.ObserveRegistration(engine, observability.OutcomeRejected)
		logWarn(deps, r, "register_connect_failed", req.UserID, engine, err)
		writeError(r.Context(), w, http.StatusBadRequest, "CONNECT_FAILED", "could not connect to database", true, nil)
		return
	}

	tables, err := deps.Introspect(r.Context(), source.DB, engine, req.Database, deps.SchemaSampleRows)
	if err != nil {
		_ = source.Close()
		observability.ObserveRegistration(engine, observability.OutcomeRejected)
		logWarn(deps, r, "register_introspect_failed", req.UserID, engine, err)
		writeError(r.Context(), w, http.StatusBadRequest, "SCHEMA_FETCH_FAILED", "could not read database schema", true, nil)
		return
	}

	now := deps.Now().UTC()
	if err := deps.Registry.Put(registry.Entry{
		UserID:       req.UserID,
		Engine:       engine,
		Database:     req.Database,
		Tables:       tables,
		RegisteredAt: now,
		Conn:         source,
	}); err != nil {
		logWarn(deps, r, "register_close_previous_failed", req.UserID, engine, err)
	}
	observability.ObserveRegistration(engine, observability.OutcomeSuccess)
	if deps.Logger != nil {
		deps.Logger.InfoContext(r.Context(), "register_succeeded",
			slog.String("user_id", req.UserID),
			slog.String("engine", engine),
			slog.Int("tables", len(tables)),
		)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"created_at": now.Format(time.RFC3339Nano),
		"res":        "connected",
	})
}

func logWarn(deps Dependencies, r *http.Request, msg, userID, engine string, err error) {
	if deps.Logger == nil {
		return
	}
	deps.Logger.WarnContext(r.Context(), msg,
		slog.String("user_id", userID),
		slog.String("engine", engine),
		slog.Any("error", err),
	)
}
