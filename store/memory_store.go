package store

import (
	"context"
	"sync"

	"github.com/Luismorlan/postmux/normalizer"
	"github.com/pkg/errors"
)

// MemoryRecordStore keeps records in a map. It backs tests and single-shot
// runs that do not need durability.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]normalizer.Record
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: map[string]normalizer.Record{}}
}

func (s *MemoryRecordStore) Save(ctx context.Context, record normalizer.Record) error {
	if record.ID() == "" {
		return errors.New("cannot save record without _id")
	}
	if _, err := recordEpoch(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID()] = copyRecord(record)
	return nil
}

func (s *MemoryRecordStore) Get(ctx context.Context, id string) (normalizer.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "id %s", id)
	}
	return copyRecord(record), nil
}

func (s *MemoryRecordStore) Range(ctx context.Context, start, end float64) ([]normalizer.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := []normalizer.Record{}
	for _, record := range s.records {
		epoch, err := recordEpoch(record)
		if err != nil {
			continue
		}
		if epoch >= start && epoch < end {
			res = append(res, copyRecord(record))
		}
	}
	sortByID(res)
	return res, nil
}

func (s *MemoryRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func copyRecord(record normalizer.Record) normalizer.Record {
	res := make(normalizer.Record, len(record))
	for key, value := range record {
		res[key] = value
	}
	return res
}

// MemoryLinkQueue records queued ids in order.
type MemoryLinkQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *MemoryLinkQueue) Enqueue(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, id)
	return nil
}

func (q *MemoryLinkQueue) IDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string{}, q.ids...)
}
