package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlingo/sqlingo/internal/backend"
)

type Registrar interface {
	Register(ctx context.Context, req backend.RegisterRequest) (backend.RegisterAck, error)
}

// ConnectionManager owns the connection form and the connect handshake.
type ConnectionManager struct {
	registrar Registrar
	logger    *slog.Logger

	mu          sync.Mutex
	profile     ConnectionProfile
	state       ConnectionState
	connecting  bool
	established ConnectionProfile
}

func NewConnectionManager(registrar Registrar, initial ConnectionProfile, logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if initial.Engine == "" {
		initial.Engine = EngineMySQL
	}
	return &ConnectionManager{
		registrar: registrar,
		logger:    logger,
		profile:   initial,
		state:     ConnectionState{Phase: AwaitingInput},
	}
}

func (m *ConnectionManager) Profile() ConnectionProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile
}

func (m *ConnectionManager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Established returns the profile the backend acknowledged.
func (m *ConnectionManager) Established() (ConnectionProfile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != Established {
		return ConnectionProfile{}, false
	}
	return m.established, true
}

// UpdateField edits one profile field and drops a previous failure reason.
func (m *ConnectionManager) UpdateField(field Field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.state.Phase == Established:
		return ErrProfileLocked
	case m.connecting:
		return ErrInFlight
	}
	if err := m.profile.set(field, value); err != nil {
		return err
	}
	if m.state.Phase == Failed {
		m.state = ConnectionState{Phase: AwaitingInput}
	}
	return nil
}

// Submit registers the current profile with the backend. Validation failures
// never reach the network. A second call while one is outstanding returns
// ErrInFlight; a call after Established is a no-op.
func (m *ConnectionManager) Submit(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.state.Phase == Established:
		m.mu.Unlock()
		return nil
	case m.connecting:
		m.mu.Unlock()
		return ErrInFlight
	}
	if missing := m.profile.Missing(); len(missing) > 0 {
		m.mu.Unlock()
		return &Error{Kind: KindValidation, Message: MsgFieldsRequired, Fields: missing}
	}
	snapshot := m.profile
	m.connecting = true
	m.state = ConnectionState{Phase: Connecting}
	m.mu.Unlock()

	start := time.Now()
	_, err := m.registrar.Register(ctx, snapshot.registerRequest())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.connecting = false
	if err != nil {
		failure := classify(err, MsgConnectRejected, MsgConnectTransport)
		m.state = ConnectionState{Phase: Failed, Reason: failure.Message}
		m.logger.WarnContext(ctx, "connect_failed",
			slog.String("user_id", snapshot.UserID),
			slog.String("engine", string(snapshot.Engine)),
			slog.String("host", snapshot.Host),
			slog.String("kind", string(failure.Kind)),
			slog.String("duration", time.Since(start).String()),
			slog.Any("error", err),
		)
		return failure
	}

	m.established = snapshot
	m.state = ConnectionState{Phase: Established}
	m.logger.InfoContext(ctx, "connect_established",
		slog.String("user_id", snapshot.UserID),
		slog.String("engine", string(snapshot.Engine)),
		slog.String("host", snapshot.Host),
		slog.String("duration", time.Since(start).String()),
	)
	return nil
}
