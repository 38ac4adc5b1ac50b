// Package session holds the client-side state machine: the connection form
// and handshake, then the question/SQL exchange bound to the established
// user. One Controller serves one interactive session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Options struct {
	Registrar     Registrar
	Translator    Translator
	Clipboard     Clipboard
	Profile       ConnectionProfile
	CopiedFlagTTL time.Duration
	AfterFunc     AfterFunc
	Logger        *slog.Logger
}

// Snapshot is a consistent view for rendering.
type Snapshot struct {
	Profile    ConnectionProfile
	Connection ConnectionState
	Exchange   QueryExchange
	Copied     bool
	Message    string
}

type Controller struct {
	conn       *ConnectionManager
	translator Translator
	clipboard  Clipboard
	copiedTTL  time.Duration
	afterFunc  AfterFunc
	logger     *slog.Logger

	mu      sync.Mutex
	query   *QuerySession
	message string
}

func New(opts Options) (*Controller, error) {
	if opts.Registrar == nil {
		return nil, fmt.Errorf("registrar is required")
	}
	if opts.Translator == nil {
		return nil, fmt.Errorf("translator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ttl := opts.CopiedFlagTTL
	if ttl <= 0 {
		ttl = DefaultCopiedFlagTTL
	}
	afterFunc := opts.AfterFunc
	if afterFunc == nil {
		afterFunc = realAfterFunc
	}
	return &Controller{
		conn:       NewConnectionManager(opts.Registrar, opts.Profile, logger),
		translator: opts.Translator,
		clipboard:  opts.Clipboard,
		copiedTTL:  ttl,
		afterFunc:  afterFunc,
		logger:     logger,
	}, nil
}

func (c *Controller) Connection() *ConnectionManager {
	return c.conn
}

// UpdateField edits the form and clears the message slot.
func (c *Controller) UpdateField(field Field, value string) error {
	if err := c.conn.UpdateField(field, value); err != nil {
		var sessionErr *Error
		if errors.As(err, &sessionErr) {
			c.setMessage(sessionErr.Message)
		}
		return err
	}
	c.setMessage("")
	return nil
}

func (c *Controller) Submit(ctx context.Context) error {
	if c.conn.State().Phase != Connecting {
		c.setMessage("")
	}
	err := c.conn.Submit(ctx)
	c.record(err)
	return err
}

// Query returns the query session, which exists only once the connection
// is established.
func (c *Controller) Query() (*QuerySession, error) {
	profile, ok := c.conn.Established()
	if !ok {
		return nil, ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.query == nil {
		c.query = newQuerySession(profile.UserID, c.translator, c.clipboard, c.copiedTTL, c.afterFunc, c.logger)
	}
	return c.query, nil
}

func (c *Controller) Convert(ctx context.Context, question string) error {
	query, err := c.Query()
	if err != nil {
		return err
	}
	if query.Exchange().Status != InFlight {
		c.setMessage("")
	}
	err = query.Convert(ctx, question)
	c.record(err)
	return err
}

// CopyResult is a no-op before a query session exists.
func (c *Controller) CopyResult() bool {
	query, err := c.Query()
	if err != nil {
		return false
	}
	return query.CopyResult()
}

func (c *Controller) Snapshot() Snapshot {
	snapshot := Snapshot{
		Profile:    c.conn.Profile().Redacted(),
		Connection: c.conn.State(),
	}
	c.mu.Lock()
	query := c.query
	snapshot.Message = c.message
	c.mu.Unlock()
	if query != nil {
		snapshot.Exchange = query.Exchange()
		snapshot.Copied = query.Copied()
	}
	return snapshot
}

func (c *Controller) record(err error) {
	var sessionErr *Error
	if errors.As(err, &sessionErr) {
		c.setMessage(sessionErr.Message)
	}
}

func (c *Controller) setMessage(message string) {
	c.mu.Lock()
	c.message = message
	c.mu.Unlock()
}
