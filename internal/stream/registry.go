// Package stream tracks open real-time delivery connections. The registry
// is strictly per-process bookkeeping: in a multi-instance deployment each
// process sees only its own connections, and fan-out across processes goes
// through the pub/sub broker, never through this registry.
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Connection is one open delivery stream for one device. It is ephemeral
// and never persisted.
type Connection struct {
	ID       string
	UserID   string
	OpenedAt time.Time
}

// Registry holds the process's open connections keyed by user. A user may
// hold any number of simultaneous connections (multi-device).
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Connection
}

// NewRegistry creates an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Connection),
	}
}

// Register records a newly opened connection and returns it.
func (r *Registry) Register(userID string) *Connection {
	conn := &Connection{
		ID:       uuid.NewString(),
		UserID:   userID,
		OpenedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]*Connection)
		r.byUser[userID] = conns
	}
	conns[conn.ID] = conn
	return conn
}

// Unregister removes a connection. It is idempotent: the transport's
// cancellation hook and an error path may both call it without harm.
func (r *Registry) Unregister(conn *Connection) {
	if conn == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	conns, ok := r.byUser[conn.UserID]
	if !ok {
		return
	}
	delete(conns, conn.ID)
	if len(conns) == 0 {
		delete(r.byUser, conn.UserID)
	}
}

// Connections returns a snapshot of the user's open connections.
func (r *Registry) Connections(userID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Connection, 0, len(r.byUser[userID]))
	for _, c := range r.byUser[userID] {
		conns = append(conns, c)
	}
	return conns
}

// Count returns how many connections the user currently holds in this
// process.
func (r *Registry) Count(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// Total returns the number of open connections across all users.
func (r *Registry) Total() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, conns := range r.byUser {
		total += len(conns)
	}
	return total
}
