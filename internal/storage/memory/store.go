// Package memory provides an in-memory record store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/streamforge/schema-registry/internal/storage"
)

// Store is an in-memory implementation of storage.Store. Records are held in
// per-namespace maps; an order slice preserves insertion order for Find/List.
type Store struct {
	mu       sync.RWMutex
	records  map[string]map[string]storage.Record
	order    map[string][]string
	counters map[string]int64
	closed   bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		records:  make(map[string]map[string]storage.Record),
		order:    make(map[string][]string),
		counters: make(map[string]int64),
	}
}

// NextID allocates the next id for the namespace, starting at 1.
func (s *Store) NextID(ctx context.Context, namespace string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[namespace]++
	return s.counters[namespace], nil
}

// Get returns the record stored under the key's value.
func (s *Store) Get(ctx context.Context, key storage.Key) (storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.records[key.Namespace]
	if !ok {
		return nil, storage.ErrNotFound
	}
	rec, ok := ns[key.Value]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// Find returns records matching all filters, in insertion order.
func (s *Store) Find(ctx context.Context, namespace string, filters []storage.Filter) ([]storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []storage.Record
	for _, pk := range s.order[namespace] {
		rec := s.records[namespace][pk]
		ok, err := storage.Matches(rec, filters)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, rec)
		}
	}
	return result, nil
}

// List returns all records in the namespace in insertion order.
func (s *Store) List(ctx context.Context, namespace string) ([]storage.Record, error) {
	return s.Find(ctx, namespace, nil)
}

// Add inserts a record. Duplicate primary keys are rejected.
func (s *Store) Add(ctx context.Context, record storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(record)
}

// AddAll inserts the records under one lock acquisition. If any insert fails
// the earlier ones are rolled back, so the group commits together.
func (s *Store) AddAll(ctx context.Context, records []storage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range records {
		if err := s.addLocked(rec); err != nil {
			for _, done := range records[:i] {
				s.removeLocked(done)
			}
			return err
		}
	}
	return nil
}

func (s *Store) addLocked(record storage.Record) error {
	key := record.Key()
	ns, ok := s.records[key.Namespace]
	if !ok {
		ns = make(map[string]storage.Record)
		s.records[key.Namespace] = ns
	}
	if _, exists := ns[key.Value]; exists {
		return fmt.Errorf("%w: %s/%s", storage.ErrRecordExists, key.Namespace, key.Value)
	}
	ns[key.Value] = record
	s.order[key.Namespace] = append(s.order[key.Namespace], key.Value)
	return nil
}

func (s *Store) removeLocked(record storage.Record) {
	key := record.Key()
	delete(s.records[key.Namespace], key.Value)
	order := s.order[key.Namespace]
	for i, pk := range order {
		if pk == key.Value {
			s.order[key.Namespace] = append(order[:i], order[i+1:]...)
			break
		}
	}
}

// Close releases the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IsHealthy reports whether the store is usable.
func (s *Store) IsHealthy(ctx context.Context) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

var _ storage.Store = (*Store)(nil)
