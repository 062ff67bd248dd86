package auth

import (
	"errors"
	"sync"
)

// Keys under which the session credential is persisted
const (
	TokenKey     = "auth_token"
	TimestampKey = "auth_timestamp"
)

// ErrUnavailable is returned when the backing store cannot be reached at all
// (no keychain daemon, unreadable config directory)
var ErrUnavailable = errors.New("token storage unavailable")

// Store defines durable client storage for the session credential.
// This allows us to swap the OS keychain for a file or memory in tests.
type Store interface {
	// Get returns the value and whether it was present
	Get(key string) (string, bool, error)
	Set(key, value string) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(key string) error
}

// Memory is an in-process Store. The zero value is ready to use.
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[key] = value
	return nil
}

func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
	return nil
}
