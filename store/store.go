// store/store.go
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or has expired.
var ErrNotFound = errors.New("key not found")

// Store is a key-value store with expiring entries. It holds the
// authoritative transient state of every room and lobby as JSON blobs.
type Store interface {
	Get(key string) ([]byte, error)
	// Set writes the value and (re)sets its time-to-live. A zero ttl
	// means the entry never expires.
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Close() error
}
