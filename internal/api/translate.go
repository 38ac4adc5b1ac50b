package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sqlingo/sqlingo/internal/auth"
	"github.com/sqlingo/sqlingo/internal/nl2sql"
	"github.com/sqlingo/sqlingo/internal/observability"
	"github.com/sqlingo/sqlingo/internal/registry"
)

var errTranslatorMissing = errors.New("query translation is not configured")

type translateRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Translator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", errTranslatorMissing.Error(), false, nil)
		return
	}

	var req translateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "INVALID_JSON", err.Error(), false, nil)
		return
	}
	if err := validateFields(field{"userId", req.UserID}, field{"query", req.Query}); err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), false, nil)
		return
	}
	if !auth.Authorize(r.Context(), req.UserID) {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", "api key may not act for this user", false, nil)
		return
	}

	entry, err := deps.Registry.Get(req.UserID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(r.Context(), w, http.StatusNotFound, "CONNECTION_NOT_FOUND", registry.ErrNotFound.Error(), false, nil)
			return
		}
		writeError(r.Context(), w, http.StatusInternalServerError, "REGISTRY_FAILED", "failed to load connection", true, nil)
		return
	}

	start := time.Now()
	result, err := deps.Translator.Translate(r.Context(), nl2sql.Request{
		UserID:          req.UserID,
		Dialect:         entry.Engine,
		Database:        entry.Database,
		NaturalLanguage: req.Query,
		Tables:          entry.Tables,
	})
	sql := ""
	if err == nil {
		sql = nl2sql.CleanSQL(result.SQL)
		if sql == "" {
			err = errors.New("translator returned empty SQL")
		}
	}
	if err != nil {
		observability.ObserveTranslation(observability.OutcomeRejected, time.Since(start))
		if deps.Logger != nil {
			deps.Logger.WarnContext(r.Context(), "translate_failed",
				slog.String("user_id", req.UserID),
				slog.Any("error", err),
			)
		}
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate query", true, nil)
		return
	}
	observability.ObserveTranslation(observability.OutcomeSuccess, time.Since(start))

	writeJSON(w, http.StatusOK, map[string]any{
		"created_at": deps.Now().UTC().Format(time.RFC3339Nano),
		"res":        sql,
	})
}
