package webhook

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one received callback payload.
type Entry struct {
	ID         string          `json:"id"`
	Method     string          `json:"method"`
	ReceivedAt time.Time       `json:"received_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Store keeps received callback payloads in memory, bounded to a maximum
// count. The oldest entries are evicted first.
type Store struct {
	mu      sync.RWMutex
	max     int
	entries []Entry
}

// NewStore creates a store holding at most max entries.
func NewStore(max int) *Store {
	if max < 1 {
		max = 1
	}
	return &Store{max: max}
}

// Add records a payload and returns the stored entry.
func (s *Store) Add(method string, payload json.RawMessage) Entry {
	entry := Entry{
		ID:         uuid.NewString(),
		Method:     method,
		ReceivedAt: time.Now().UTC(),
		Payload:    payload,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	if len(s.entries) > s.max {
		s.entries = s.entries[len(s.entries)-s.max:]
	}

	return entry
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// List returns all entries, newest first.
func (s *Store) List() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

// Search returns entries whose payload contains the query as a substring,
// newest first. An empty query matches everything.
func (s *Store) Search(query string) []Entry {
	if query == "" {
		return s.List()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if strings.Contains(string(s.entries[i].Payload), query) {
			out = append(out, s.entries[i])
		}
	}
	return out
}
