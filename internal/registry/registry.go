// Package registry keeps the schema context and open connection registered
// for each user.
package registry

import (
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sqlingo/sqlingo/internal/nl2sql"
	"github.com/sqlingo/sqlingo/internal/observability"
)

var ErrNotFound = errors.New("no connection registered for user")

type Entry struct {
	UserID       string
	Engine       string
	Database     string
	Tables       []nl2sql.TableContext
	RegisteredAt time.Time
	// Conn is closed when the entry is replaced or the registry closes.
	Conn io.Closer
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func New() *Registry {
	return &Registry{entries: map[string]Entry{}}
}

// Put stores entry under its userId and closes any connection it replaces.
func (r *Registry) Put(entry Entry) error {
	r.mu.Lock()
	previous, existed := r.entries[entry.UserID]
	r.entries[entry.UserID] = entry
	count := len(r.entries)
	r.mu.Unlock()

	observability.SetRegisteredConnections(count)
	if existed && previous.Conn != nil && previous.Conn != entry.Conn {
		return previous.Conn.Close()
	}
	return nil
}

func (r *Registry) Get(userID string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[userID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Users returns the registered userIds in sorted order.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.entries))
	for userID := range r.entries {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Close drops every entry and closes its connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	entries := r.entries
	r.entries = map[string]Entry{}
	r.mu.Unlock()

	observability.SetRegisteredConnections(0)
	var errs []error
	for _, entry := range entries {
		if entry.Conn == nil {
			continue
		}
		if err := entry.Conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
