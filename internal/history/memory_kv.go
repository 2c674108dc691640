package history

import (
	"errors"
	"sync"
)

// ErrWriteRejected is returned by MemoryKV.Put while writes are failing.
var ErrWriteRejected = errors.New("history: write rejected")

// MemoryKV is an in-process KV. It can be told to fail writes, which is
// how quota exhaustion is simulated.
type MemoryKV struct {
	mu         sync.Mutex
	data       map[string][]byte
	failWrites error
	writes     int
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string][]byte)}
}

// Get returns a copy of the stored value.
func (m *MemoryKV) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put stores a copy of value unless writes are failing.
func (m *MemoryKV) Put(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	m.data[key] = append([]byte(nil), value...)
	m.writes++
	return nil
}

// Close is a no-op.
func (m *MemoryKV) Close() error { return nil }

// FailWrites makes every later Put return err. Pass nil to recover.
func (m *MemoryKV) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

// Writes reports how many Puts succeeded.
func (m *MemoryKV) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Set stores raw bytes directly, bypassing failure injection.
func (m *MemoryKV) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}
