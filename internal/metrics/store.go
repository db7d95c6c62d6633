package metrics

import (
	"context"

	"github.com/streamforge/schema-registry/internal/storage"
)

// InstrumentStore wraps a record store so every operation is counted.
func InstrumentStore(s storage.Store, m *Metrics) storage.Store {
	if m == nil {
		return s
	}
	return &instrumentedStore{next: s, metrics: m}
}

type instrumentedStore struct {
	next    storage.Store
	metrics *Metrics
}

func (s *instrumentedStore) NextID(ctx context.Context, namespace string) (int64, error) {
	s.metrics.ObserveStorageOp("next_id", namespace)
	return s.next.NextID(ctx, namespace)
}

func (s *instrumentedStore) Get(ctx context.Context, key storage.Key) (storage.Record, error) {
	s.metrics.ObserveStorageOp("get", key.Namespace)
	return s.next.Get(ctx, key)
}

func (s *instrumentedStore) Find(ctx context.Context, namespace string, filters []storage.Filter) ([]storage.Record, error) {
	s.metrics.ObserveStorageOp("find", namespace)
	return s.next.Find(ctx, namespace, filters)
}

func (s *instrumentedStore) List(ctx context.Context, namespace string) ([]storage.Record, error) {
	s.metrics.ObserveStorageOp("list", namespace)
	return s.next.List(ctx, namespace)
}

func (s *instrumentedStore) Add(ctx context.Context, record storage.Record) error {
	s.metrics.ObserveStorageOp("add", record.Namespace())
	return s.next.Add(ctx, record)
}

func (s *instrumentedStore) AddAll(ctx context.Context, records []storage.Record) error {
	for _, rec := range records {
		s.metrics.ObserveStorageOp("add", rec.Namespace())
	}
	return s.next.AddAll(ctx, records)
}

func (s *instrumentedStore) Close() error { return s.next.Close() }

func (s *instrumentedStore) IsHealthy(ctx context.Context) bool { return s.next.IsHealthy(ctx) }

var _ storage.Store = (*instrumentedStore)(nil)
