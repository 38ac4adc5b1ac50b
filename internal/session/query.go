package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sqlingo/sqlingo/internal/backend"
)

type Translator interface {
	Translate(ctx context.Context, req backend.TranslateRequest) (backend.TranslateResponse, error)
}

type Clipboard interface {
	WriteAll(text string) error
}

// Timer is the part of *time.Timer the copied flag needs.
type Timer interface {
	Stop() bool
}

type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

const DefaultCopiedFlagTTL = 2 * time.Second

// QuerySession owns the natural-language exchange for one established user.
type QuerySession struct {
	userID     string
	translator Translator
	clipboard  Clipboard
	copiedTTL  time.Duration
	afterFunc  AfterFunc
	logger     *slog.Logger

	mu          sync.Mutex
	exchange    QueryExchange
	copied      bool
	copiedTimer Timer
}

func newQuerySession(userID string, translator Translator, clipboard Clipboard, copiedTTL time.Duration, afterFunc AfterFunc, logger *slog.Logger) *QuerySession {
	return &QuerySession{
		userID:     userID,
		translator: translator,
		clipboard:  clipboard,
		copiedTTL:  copiedTTL,
		afterFunc:  afterFunc,
		logger:     logger,
	}
}

func (q *QuerySession) UserID() string {
	return q.userID
}

func (q *QuerySession) Exchange() QueryExchange {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exchange
}

func (q *QuerySession) Copied() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.copied
}

// Convert sends the question for translation. Blank input is a validation
// error; a call while another is outstanding returns ErrInFlight and changes
// nothing.
func (q *QuerySession) Convert(ctx context.Context, question string) error {
	q.mu.Lock()
	if q.exchange.Status == InFlight {
		q.mu.Unlock()
		return ErrInFlight
	}
	if strings.TrimSpace(question) == "" {
		q.mu.Unlock()
		return &Error{Kind: KindValidation, Message: MsgQueryRequired}
	}
	q.exchange.Question = question
	q.exchange.Status = InFlight
	q.exchange.Reason = ""
	q.mu.Unlock()

	start := time.Now()
	resp, err := q.translator.Translate(ctx, backend.TranslateRequest{UserID: q.userID, Query: question})

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		failure := classify(err, MsgConvertRejected, MsgConvertTransport)
		q.exchange.Status = ExchangeFailed
		q.exchange.Reason = failure.Message
		q.logger.WarnContext(ctx, "convert_failed",
			slog.String("user_id", q.userID),
			slog.String("kind", string(failure.Kind)),
			slog.String("duration", time.Since(start).String()),
			slog.Any("error", err),
		)
		return failure
	}

	q.exchange.Status = Succeeded
	q.exchange.SQL = resp.SQL
	q.logger.InfoContext(ctx, "convert_succeeded",
		slog.String("user_id", q.userID),
		slog.Int("sql_length", len(resp.SQL)),
		slog.String("duration", time.Since(start).String()),
	)
	return nil
}

// CopyResult puts the current SQL on the clipboard and raises the copied
// flag until the TTL elapses. It does nothing unless the latest exchange
// succeeded, and reports whether the copy happened.
func (q *QuerySession) CopyResult() bool {
	q.mu.Lock()
	if q.exchange.Status != Succeeded || q.clipboard == nil {
		q.mu.Unlock()
		return false
	}
	sql := q.exchange.SQL
	q.mu.Unlock()

	if err := q.clipboard.WriteAll(sql); err != nil {
		q.logger.Warn("copy_failed", slog.Any("error", err))
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.copiedTimer != nil {
		q.copiedTimer.Stop()
	}
	q.copied = true
	var timer Timer
	timer = q.afterFunc(q.copiedTTL, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.copiedTimer == timer {
			q.copied = false
			q.copiedTimer = nil
		}
	})
	q.copiedTimer = timer
	return true
}
