// Package memory implements the process-local, request-scoped shared
// memory described in the data model: a map[string]string guarded for
// concurrent access, with no TTL — lifetime is bounded by request
// completion rather than by a clock.
package memory

import (
	"fmt"
	"strings"
	"sync"

	"github.com/meridianlabs/ioa/core"
)

// Store is the process-local impression store. Keys follow the schema
// "{request_id}:{step_id}:{impression_name}"; the special key
// "{request_id}:query" holds the raw user query for the request.
type Store struct {
	mu     sync.RWMutex
	data   map[string]string
	logger core.Logger
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		data:   make(map[string]string),
		logger: &core.NoOpLogger{},
	}
}

// SetLogger attaches a logger, tagging it with the "memory" component
// when the logger supports component tagging.
func (s *Store) SetLogger(logger core.Logger) {
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		s.logger = cal.WithComponent("memory")
		return
	}
	s.logger = logger
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	s.logger.Debug("memory.get", map[string]interface{}{"key": key, "hit": ok})
	return v, ok
}

// Set stores value under key, overwriting any previous value.
func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.logger.Debug("memory.set", map[string]interface{}{"key": key, "size": len(value)})
}

// Delete removes key, a no-op if it is absent.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}

// ImpressionKey builds the standard "{request_id}:{step_id}:{name}" key.
func ImpressionKey(requestID, stepID, name string) string {
	return fmt.Sprintf("%s:%s:%s", requestID, stepID, name)
}

// QueryKey builds the "{request_id}:query" key.
func QueryKey(requestID string) string {
	return requestID + ":query"
}

// ClearSession removes every key prefixed by requestID, optionally
// preserving the "{request_id}:query" entry — used when a graph stalls
// and is about to be replanned against the same query.
func (s *Store) ClearSession(requestID string, preserveQuery bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := requestID + ":"
	queryKey := QueryKey(requestID)
	for k := range s.data {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if preserveQuery && k == queryKey {
			continue
		}
		delete(s.data, k)
	}
	s.logger.Debug("memory.clear_session", map[string]interface{}{
		"request_id":     requestID,
		"preserve_query": preserveQuery,
	})
}
