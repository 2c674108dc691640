// Package history persists completed pipeline runs as one JSON list under a
// single key of a small key-value surface. The list is capacity-bounded and
// kept newest-first.
package history

import (
	"errors"
	"fmt"
	"strings"

	"visualsoal/internal/config"
	"visualsoal/internal/logging"
)

// ErrNotFound is returned by KV.Get when the key has never been written.
var ErrNotFound = errors.New("history: key not found")

// KV is the persistent key-value surface the store writes through.
// Put replaces the whole value for key.
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Close() error
}

// Open selects and opens the backend named by cfg.Backend.
func Open(cfg config.HistoryConfig) (KV, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	logging.HistoryDebug("Opening history backend=%s path=%s", backend, cfg.Path)

	switch backend {
	case "", "file":
		return NewFileKV(cfg.Path)
	case "sqlite":
		return NewSQLiteKV(cfg.Path, cfg.Driver)
	case "bolt":
		return NewBoltKV(cfg.Path)
	case "memory":
		return NewMemoryKV(), nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", cfg.Backend)
	}
}
