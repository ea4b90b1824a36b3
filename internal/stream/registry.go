package stream

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// SessionInfo is the registry's view of one active session.
type SessionInfo struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // "echo" or "playback"
	Resource   string    `json:"resource,omitempty"`
	RemoteAddr string    `json:"remote_addr"`
	StartTime  time.Time `json:"start_time"`
}

// Registry tracks active sessions for monitoring. Sessions own their own
// state; the registry only holds metadata and is the single piece of state
// shared across connections.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]SessionInfo
	logger   *slog.Logger

	totalStarted uint64
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]SessionInfo),
		logger:   logger,
	}
}

// Add records a session as active.
func (r *Registry) Add(info SessionInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[info.ID] = info
	r.totalStarted++

	r.logger.Debug("Session registered",
		slog.String("session_id", info.ID),
		slog.String("kind", info.Kind),
		slog.Int("active", len(r.sessions)),
	)
}

// Remove drops a session from the active set.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)

	r.logger.Debug("Session removed",
		slog.String("session_id", id),
		slog.Int("active", len(r.sessions)),
	)
}

// ActiveCount returns the number of active sessions.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// TotalStarted returns the number of sessions started since boot.
func (r *Registry) TotalStarted() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalStarted
}

// Snapshot returns the active sessions ordered by start time.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SessionInfo, 0, len(r.sessions))
	for _, info := range r.sessions {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}
