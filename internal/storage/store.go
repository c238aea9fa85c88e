// Package storage persists client state between CLI invocations.
//
// It plays the role browser storage plays for a web client: a flat string
// key/value namespace, optionally with per-key expiry for short-lived values
// such as the OAuth return path.
package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/felixgeelhaar/okr/internal/errors"
)

// Well-known keys
const (
	KeyAuthToken           = "authToken"
	KeyCurrentUser         = "currentUser"
	KeyCompanyData         = "companyData"
	KeyGoogleOAuthRedirect = "googleOAuthRedirect"
)

// Store defines the interface for persisted client state.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent or expired.
	Get(key string) (value string, ok bool, err error)

	// Set stores value under key with no expiry.
	Set(key, value string) error

	// SetTTL stores value under key; it disappears after ttl.
	SetTTL(key, value string, ttl time.Duration) error

	// Remove deletes keys. Missing keys are not an error.
	Remove(keys ...string) error

	// Cleanup removes expired entries and returns how many were removed.
	Cleanup(ctx context.Context) (int, error)
}

type entry struct {
	Value     string     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

func newEntry(value string, ttl time.Duration, now time.Time) entry {
	e := entry{Value: value}
	if ttl > 0 {
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}
	return e
}

// MemoryStore implements in-memory storage. Tests and --ephemeral runs use it.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]entry), now: time.Now}
}

// Get retrieves a value by key.
func (m *MemoryStore) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.Value, true, nil
}

// Set saves a value.
func (m *MemoryStore) Set(key, value string) error {
	return m.SetTTL(key, value, 0)
}

// SetTTL saves a value that expires after ttl.
func (m *MemoryStore) SetTTL(key, value string, ttl time.Duration) error {
	if key == "" {
		return errors.New(errors.ErrCodeStorageWrite, "storage key cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = newEntry(value, ttl, m.now())
	return nil
}

// Remove deletes keys.
func (m *MemoryStore) Remove(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Cleanup removes expired entries.
func (m *MemoryStore) Cleanup(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	now := m.now()
	for k, e := range m.entries {
		if e.expired(now) {
			delete(m.entries, k)
			count++
		}
	}
	return count, nil
}

// Len returns the number of live entries.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// GetJSON decodes the value under key into v.
// A value that fails to decode is removed and reported as STORE-003.
func GetJSON(s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		_ = s.Remove(key)
		return false, errors.NewStorageCorruptError(key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageWrite, "failed to encode "+key, err)
	}
	return s.Set(key, string(data))
}
