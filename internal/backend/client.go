// Package backend speaks the two JSON exchanges of the translation service:
// connection registration and natural-language translation.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sqlingo/sqlingo/internal/observability"
)

const (
	OpRegister  = "register"
	OpTranslate = "translate"
)

type Config struct {
	BaseURL       string
	RegisterPath  string
	TranslatePath string
	APIKey        string
	// Timeout bounds each exchange; zero waits for the backend indefinitely.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// RegisterRequest field names are the ones the backend expects on the wire.
type RegisterRequest struct {
	UserID   string `json:"userId"`
	Link     string `json:"link"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
	Type     string `json:"type"`
}

// RegisterAck holds the acknowledgment body. Its contents are not interpreted.
type RegisterAck struct {
	Body json.RawMessage
}

type TranslateRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
}

type TranslateResponse struct {
	CreatedAt string `json:"created_at"`
	SQL       string `json:"res"`
}

type Client struct {
	baseURL       string
	registerPath  string
	translatePath string
	apiKey        string
	client        *http.Client
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("backend timeout must not be negative")
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		baseURL:       baseURL,
		registerPath:  pathOr(cfg.RegisterPath, "/items"),
		translatePath: pathOr(cfg.TranslatePath, "/query"),
		apiKey:        strings.TrimSpace(cfg.APIKey),
		client:        client,
	}, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (ack RegisterAck, err error) {
	defer observe(OpRegister, time.Now(), &err)
	body, err := c.post(ctx, OpRegister, c.registerPath, req)
	if err != nil {
		return RegisterAck{}, err
	}
	if !json.Valid(body) {
		return RegisterAck{}, &TransportError{Op: OpRegister, Err: ErrMalformedResponse}
	}
	return RegisterAck{Body: json.RawMessage(body)}, nil
}

func (c *Client) Translate(ctx context.Context, req TranslateRequest) (result TranslateResponse, err error) {
	defer observe(OpTranslate, time.Now(), &err)
	body, err := c.post(ctx, OpTranslate, c.translatePath, req)
	if err != nil {
		return TranslateResponse{}, err
	}
	var parsed struct {
		CreatedAt string  `json:"created_at"`
		Res       *string `json:"res"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return TranslateResponse{}, &TransportError{Op: OpTranslate, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if parsed.Res == nil {
		return TranslateResponse{}, &TransportError{Op: OpTranslate, Err: fmt.Errorf("%w: missing res", ErrMalformedResponse)}
	}
	return TranslateResponse{CreatedAt: parsed.CreatedAt, SQL: *parsed.Res}, nil
}

// post returns the body of a 2xx response. Every other outcome is a
// *RejectedError or a *TransportError.
func (c *Client) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	traceID := observability.TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = observability.NewTraceID()
	}
	httpReq.Header.Set(observability.TraceHeader, traceID)
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("read response body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RejectedError{Op: op, StatusCode: resp.StatusCode, Detail: parseDetail(raw)}
	}
	return raw, nil
}

// parseDetail extracts a string "detail" from an error body. Anything else,
// including the list-shaped validation detail some frameworks emit, yields "".
func parseDetail(raw []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || len(payload.Detail) == 0 {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return detail
}

func observe(op string, start time.Time, err *error) {
	observability.ObserveClientRequest(op, outcomeOf(*err), time.Since(start))
}

func pathOr(path, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return fallback
	}
	if !strings.HasPrefix(path, "/") {
		return "/" + path
	}
	return path
}
