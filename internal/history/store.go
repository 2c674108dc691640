package history

import (
	"encoding/json"
	"errors"
	"sync"

	"visualsoal/internal/logging"
	"visualsoal/internal/types"
)

// DefaultCapacity is the number of records kept.
const DefaultCapacity = 50

// Store is the capacity-bounded, newest-first record list. Every mutation
// rewrites the whole list under one key.
type Store struct {
	mu       sync.RWMutex
	kv       KV
	key      string
	capacity int
	records  []types.Record
}

// NewStore creates a store over kv. Call Load before use.
func NewStore(kv KV, key string, capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if key == "" {
		key = "visual_soal_history_v1"
	}
	return &Store{kv: kv, key: key, capacity: capacity}
}

// Load reads the persisted list. Missing or unreadable data yields an empty
// list; it never fails.
func (s *Store) Load() []types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	data, err := s.kv.Get(s.key)
	switch {
	case errors.Is(err, ErrNotFound):
		logging.HistoryDebug("No history stored under %s", s.key)
		return nil
	case err != nil:
		logging.HistoryWarn("%v", types.NewError(types.KindPersistenceRead, err))
		return nil
	}

	var records []types.Record
	if err := json.Unmarshal(data, &records); err != nil {
		logging.HistoryWarn("%v", types.NewError(types.KindPersistenceRead, err))
		return nil
	}
	if len(records) > s.capacity {
		records = records[:s.capacity]
	}
	s.records = records
	logging.History("Loaded %d history records", len(records))
	return cloneRecords(records)
}

// Insert prepends rec and evicts past capacity. On a write failure the
// previous list is kept and returned with a PersistenceWriteError.
func (s *Store) Insert(rec types.Record) ([]types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]types.Record, 0, min(len(s.records)+1, s.capacity))
	next = append(next, rec)
	next = append(next, s.records...)
	if len(next) > s.capacity {
		evicted := len(next) - s.capacity
		next = next[:s.capacity]
		logging.HistoryDebug("Evicted %d oldest records", evicted)
	}

	if err := s.persist(next); err != nil {
		return cloneRecords(s.records), err
	}
	s.records = next
	logging.History("Inserted record %s (%d stored)", rec.ID, len(next))
	return cloneRecords(next), nil
}

// Remove deletes the record with id. An unknown id is not an error.
func (s *Store) Remove(id string) ([]types.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]types.Record, 0, len(s.records))
	for _, r := range s.records {
		if r.ID != id {
			next = append(next, r)
		}
	}
	if len(next) == len(s.records) {
		logging.HistoryDebug("Remove: no record with id %s", id)
		return cloneRecords(s.records), nil
	}

	if err := s.persist(next); err != nil {
		return cloneRecords(s.records), err
	}
	s.records = next
	logging.History("Removed record %s (%d stored)", id, len(next))
	return cloneRecords(next), nil
}

// Records returns a copy of the current list, newest first.
func (s *Store) Records() []types.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneRecords(s.records)
}

// Get looks up one record by id.
func (s *Store) Get(id string) (types.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return types.Record{}, false
}

// Capacity returns the configured bound.
func (s *Store) Capacity() int { return s.capacity }

func (s *Store) persist(records []types.Record) error {
	if records == nil {
		records = []types.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return types.NewError(types.KindPersistenceWrite, err)
	}
	if err := s.kv.Put(s.key, data); err != nil {
		logging.HistoryError("Write failed, keeping previous list: %v", err)
		return types.NewError(types.KindPersistenceWrite, err)
	}
	return nil
}

func cloneRecords(in []types.Record) []types.Record {
	if in == nil {
		return nil
	}
	out := make([]types.Record, len(in))
	copy(out, in)
	return out
}
