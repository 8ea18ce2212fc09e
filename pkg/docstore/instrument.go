package docstore

import (
	"context"
	"time"
)

// OperationRecorder receives the outcome of each store operation.
// *observability.Metrics satisfies it.
type OperationRecorder interface {
	RecordStoreOperation(operation, backend string, err error, duration time.Duration)
}

// Instrument wraps store so every operation is reported to recorder
// under the given backend label.
func Instrument(store Store, backend string, recorder OperationRecorder) Store {
	return &instrumentedStore{store: store, backend: backend, recorder: recorder}
}

type instrumentedStore struct {
	store    Store
	backend  string
	recorder OperationRecorder
}

func (s *instrumentedStore) record(operation string, err error, start time.Time) {
	s.recorder.RecordStoreOperation(operation, s.backend, err, time.Since(start))
}

func (s *instrumentedStore) FindOne(ctx context.Context, collection, id string) ([]byte, error) {
	start := time.Now()
	doc, err := s.store.FindOne(ctx, collection, id)
	s.record("find_one", err, start)
	return doc, err
}

func (s *instrumentedStore) FindOneAndUpdate(ctx context.Context, collection, id string, update UpdateFunc) ([]byte, error) {
	start := time.Now()
	doc, err := s.store.FindOneAndUpdate(ctx, collection, id, update)
	s.record("find_one_and_update", err, start)
	return doc, err
}

func (s *instrumentedStore) Save(ctx context.Context, collection, id string, doc []byte) error {
	start := time.Now()
	err := s.store.Save(ctx, collection, id, doc)
	s.record("save", err, start)
	return err
}

func (s *instrumentedStore) Delete(ctx context.Context, collection, id string) error {
	start := time.Now()
	err := s.store.Delete(ctx, collection, id)
	s.record("delete", err, start)
	return err
}

func (s *instrumentedStore) HealthCheck(ctx context.Context) error {
	return s.store.HealthCheck(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.store.Close()
}
