package presence

import (
	"log/slog"
	"sync"
)

// Registry tracks which users currently have at least one live connection.
// A user is online if and only if their connection set is non-empty; the
// set emptying is the single authoritative "went offline" signal.
//
// Callers depend on this interface only. MemoryRegistry serves a
// single-instance deployment; RedisRegistry serves multi-instance ones.
type Registry interface {
	// Associate binds a connection to a user, creating the user's
	// connection set on first association. Idempotent for duplicate
	// (connID, userID) pairs. Returns true when the user transitioned
	// from offline to online.
	Associate(connID, userID string) bool

	// Disassociate removes a connection wherever it is registered.
	// Returns the owning user id and true when the user's set became
	// empty (exactly once per transition). Unknown connection ids are
	// a no-op, which absorbs duplicate disconnect events.
	Disassociate(connID string) (userID string, wentOffline bool)

	IsOnline(userID string) bool
	OnlineUserIDs() []string
	ConnectionIDs(userID string) []string
	Count(userID string) int
}

// MemoryRegistry is the in-process Registry implementation.
// One mutex guards both maps so the conn->user reverse index can never be
// observed out of sync with the per-user sets. Mutations are plain map
// operations and never suspend.
type MemoryRegistry struct {
	mu     sync.RWMutex
	conns  map[string]map[string]struct{} // userID -> set of connection IDs
	owners map[string]string              // connection ID -> userID
	logger *slog.Logger
}

// constructor for MemoryRegistry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		conns:  make(map[string]map[string]struct{}),
		owners: make(map[string]string),
		logger: slog.Default(),
	}
}

func (r *MemoryRegistry) Associate(connID, userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, exists := r.owners[connID]; exists {
		if owner != userID {
			// a connection cannot switch identity; re-auth means reconnect
			r.logger.Warn("connection_already_owned",
				"connection_id", connID,
				"owner", owner,
			)
		}
		return false
	}

	set, exists := r.conns[userID]
	if !exists {
		set = make(map[string]struct{})
		r.conns[userID] = set
	}
	set[connID] = struct{}{}
	r.owners[connID] = userID

	wentOnline := len(set) == 1
	if wentOnline {
		r.logger.Info("user_online", "user_id", userID)
	}
	return wentOnline
}

func (r *MemoryRegistry) Disassociate(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, exists := r.owners[connID]
	if !exists {
		// duplicate disconnect or never-authenticated connection
		return "", false
	}
	delete(r.owners, connID)

	set := r.conns[userID]
	delete(set, connID)
	if len(set) > 0 {
		return userID, false
	}

	// last device gone: drop the entry entirely so the registry never
	// accumulates empty sets
	delete(r.conns, userID)
	r.logger.Info("user_offline", "user_id", userID)
	return userID, true
}

func (r *MemoryRegistry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID]) > 0
}

func (r *MemoryRegistry) OnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		ids = append(ids, userID)
	}
	return ids
}

func (r *MemoryRegistry) ConnectionIDs(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.conns[userID]
	ids := make([]string, 0, len(set))
	for connID := range set {
		ids = append(ids, connID)
	}
	return ids
}

func (r *MemoryRegistry) Count(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}
