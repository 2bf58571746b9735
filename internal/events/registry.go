// Package events distributes workflow transitions to connected dashboards.
// The SubscriptionRegistry tracks which connection is interested in which
// jobs; the Broadcaster resolves targets and delivers with at-least-once
// semantics and a bounded replay backlog for reconnecting clients.
package events

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	api "github.com/ateliercolor/presstrack/api/v1alpha1"
	"github.com/ateliercolor/presstrack/internal/auth"
)

// ConnState is the lifecycle of one realtime connection. Subscriptions are
// honored only in StateAuthenticated.
type ConnState string

const (
	StateConnected     ConnState = "connected"
	StateAuthenticated ConnState = "authenticated"
	StateClosed        ConnState = "closed"
)

var (
	ErrUnknownConnection  = errors.New("unknown connection")
	ErrNotAuthenticated   = errors.New("connection is not authenticated")
	ErrConnectionReplaced = errors.New("connection closed: outbox overflow")
)

const allJobsScope = "jobs:*"

// Scope is a subscription target: a single job id or the all-jobs collection.
type Scope struct {
	All   bool
	JobID uuid.UUID
}

func AllJobsScope() Scope {
	return Scope{All: true}
}

func JobScope(id uuid.UUID) Scope {
	return Scope{JobID: id}
}

// ParseScope reads the wire form: "jobs:*" or "jobs:<uuid>".
func ParseScope(value string) (Scope, error) {
	if value == allJobsScope {
		return AllJobsScope(), nil
	}
	raw, found := strings.CutPrefix(value, "jobs:")
	if !found {
		return Scope{}, fmt.Errorf("malformed scope %q", value)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return Scope{}, fmt.Errorf("malformed scope %q: %w", value, err)
	}
	return JobScope(id), nil
}

func (s Scope) Contains(jobID uuid.UUID) bool {
	return s.All || s.JobID == jobID
}

func (s Scope) String() string {
	if s.All {
		return allJobsScope
	}
	return "jobs:" + s.JobID.String()
}

// Envelope is one delivery on a connection outbox. Cursor is the global
// backlog position used by reconnecting clients to request replay.
type Envelope struct {
	Cursor int64     `json:"cursor"`
	Event  api.Event `json:"event"`
}

// Connection is one registered realtime client. All mutable fields are
// guarded by the registry lock.
type Connection struct {
	ID uuid.UUID

	state   ConnState
	user    auth.User
	allJobs bool
	jobs    map[uuid.UUID]struct{}
	outbox  chan Envelope
}

// Outbox is the delivery channel for this connection. It is closed when the
// connection is removed from the registry.
func (c *Connection) Outbox() <-chan Envelope {
	return c.outbox
}

func (c *Connection) interestedIn(jobID uuid.UUID) bool {
	if c.allJobs {
		return true
	}
	_, ok := c.jobs[jobID]
	return ok
}

// SubscriptionRegistry tracks connections and their scopes. It replaces the
// ambient process-wide bus of the historical design: it is created explicitly,
// injected into the broadcaster, and every connection has an explicit
// lifecycle from Connect to Disconnect.
type SubscriptionRegistry struct {
	mu         sync.Mutex
	outboxSize int
	conns      map[uuid.UUID]*Connection
}

func NewSubscriptionRegistry(outboxSize int) *SubscriptionRegistry {
	if outboxSize < 1 {
		outboxSize = 1
	}
	return &SubscriptionRegistry{
		outboxSize: outboxSize,
		conns:      make(map[uuid.UUID]*Connection),
	}
}

// Connect registers a new connection in StateConnected.
func (r *SubscriptionRegistry) Connect() *Connection {
	conn := &Connection{
		ID:     uuid.New(),
		state:  StateConnected,
		jobs:   make(map[uuid.UUID]struct{}),
		outbox: make(chan Envelope, r.outboxSize),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	return conn
}

// Authenticate binds a verified user to the connection.
func (r *SubscriptionRegistry) Authenticate(connID uuid.UUID, user auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	conn.user = user
	conn.state = StateAuthenticated
	return nil
}

// Subscribe adds a scope to an authenticated connection. Subscribing twice to
// the same scope is a no-op.
func (r *SubscriptionRegistry) Subscribe(connID uuid.UUID, scope Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}
	if conn.state != StateAuthenticated {
		return ErrNotAuthenticated
	}

	if scope.All {
		conn.allJobs = true
	} else {
		conn.jobs[scope.JobID] = struct{}{}
	}
	return nil
}

// Unsubscribe releases a scope. Scopes are explicit: they must be released by
// the client, never inferred from component lifetime.
func (r *SubscriptionRegistry) Unsubscribe(connID uuid.UUID, scope Scope) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[connID]
	if !ok {
		return ErrUnknownConnection
	}

	if scope.All {
		conn.allJobs = false
	} else {
		delete(conn.jobs, scope.JobID)
	}
	return nil
}

// Disconnect removes the connection and closes its outbox. Events already
// queued but not yet read are dropped.
func (r *SubscriptionRegistry) Disconnect(connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(connID)
}

func (r *SubscriptionRegistry) dropLocked(connID uuid.UUID) {
	conn, ok := r.conns[connID]
	if !ok {
		return
	}
	conn.state = StateClosed
	delete(r.conns, connID)
	close(conn.outbox)
}

// deliver queues the envelope on every authenticated connection whose scope
// includes the job. A connection whose outbox is full is dropped rather than
// blocking the publisher; the client self-heals through reconnect and replay.
func (r *SubscriptionRegistry) deliver(env Envelope) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	delivered := 0
	for id, conn := range r.conns {
		if conn.state != StateAuthenticated || !conn.interestedIn(env.Event.JobID) {
			continue
		}
		select {
		case conn.outbox <- env:
			delivered++
		default:
			r.dropLocked(id)
		}
	}
	return delivered
}

// Len returns the number of registered connections.
func (r *SubscriptionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
