package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sqlingo/sqlingo/internal/config"
)

func TestNewLoggerJSONCarriesServiceAndProfile(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Profile:       config.ProfileTest,
		Service:       config.ServiceConfig{Name: "sqlingo"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	NewLogger(cfg, &buf).Info("connect_finished")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v (raw=%s)", err, buf.String())
	}
	if record["service"] != "sqlingo" || record["profile"] != "test" {
		t.Fatalf("record = %#v", record)
	}
}

func TestNewLoggerAddsTraceIDFromContext(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Service:       config.ServiceConfig{Name: "sqlingo"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelInfo, LogJSON: true},
	}
	ctx := ContextWithTraceID(context.Background(), "trace-42")
	NewLogger(cfg, &buf).With(slog.String("component", "api")).InfoContext(ctx, "convert_succeeded")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log record: %v (raw=%s)", err, buf.String())
	}
	if record["trace_id"] != "trace-42" || record["component"] != "api" {
		t.Fatalf("record = %#v", record)
	}
}

func TestNewLoggerTextRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{
		Service:       config.ServiceConfig{Name: "sqlingo"},
		Observability: config.ObservabilityConfig{LogLevel: slog.LevelWarn},
	}
	logger := NewLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") {
		t.Fatalf("info record leaked at warn level: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("warn record missing: %s", buf.String())
	}
}

func TestObserveClientRequest(t *testing.T) {
	before := testutil.ToFloat64(clientRequestsTotal.WithLabelValues("translate", OutcomeRejected))
	ObserveClientRequest("translate", OutcomeRejected, 12*time.Millisecond)
	after := testutil.ToFloat64(clientRequestsTotal.WithLabelValues("translate", OutcomeRejected))
	if after-before != 1 {
		t.Fatalf("client counter delta = %v", after-before)
	}
}

func TestSetRegisteredConnectionsClampsNegative(t *testing.T) {
	SetRegisteredConnections(-3)
	if got := testutil.ToFloat64(registeredConnections); got != 0 {
		t.Fatalf("registered connections = %v", got)
	}
	SetRegisteredConnections(2)
	if got := testutil.ToFloat64(registeredConnections); got != 2 {
		t.Fatalf("registered connections = %v", got)
	}
}
