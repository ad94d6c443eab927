package webflow

import (
	"net/http"
	"sync"
)

// MemoryStore is an in-memory Store for tests and single-process
// embedding. It ignores the request/response pair, so all callers
// share one bag of keys.
type MemoryStore struct {
	mutex  sync.RWMutex
	values map[string]string

	// FailWrites makes every Set fail, for exercising fail-closed
	// behavior in tests.
	FailWrites bool

	// WriteLimit, when positive, allows only that many successful
	// Sets before writes start failing.
	WriteLimit int
	writes     int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ *http.Request, key string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	value, ok := s.values[key]
	return value, ok
}

func (s *MemoryStore) Set(_ http.ResponseWriter, _ *http.Request, key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.FailWrites {
		return ErrSession{Key: key, Err: errWriteDisabled}
	}
	if s.WriteLimit > 0 && s.writes >= s.WriteLimit {
		return ErrSession{Key: key, Err: errWriteDisabled}
	}
	s.writes++
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ http.ResponseWriter, _ *http.Request, key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.values, key)
	return nil
}

type writeDisabledError struct{}

func (writeDisabledError) Error() string { return "writes disabled" }

var errWriteDisabled = writeDisabledError{}
