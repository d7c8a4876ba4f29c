package store

import (
	"context"
	"sort"

	"github.com/Luismorlan/postmux/normalizer"
	"github.com/pkg/errors"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrNoTimestamp    = errors.New("record has no readable timestamp")
)

// RecordStore persists records keyed by their _id. Saving a record with an
// existing id replaces it.
type RecordStore interface {
	Save(ctx context.Context, record normalizer.Record) error
	// Get returns ErrRecordNotFound for unknown ids.
	Get(ctx context.Context, id string) (normalizer.Record, error)
	// Range returns the records with start <= timestamp < end, sorted by _id.
	Range(ctx context.Context, start, end float64) ([]normalizer.Record, error)
}

// LinkQueue collects ids of records whose links still need to be resolved by
// an external worker.
type LinkQueue interface {
	Enqueue(ctx context.Context, id string) error
}

// Persist saves record and queues its id when it carries links to resolve.
func Persist(ctx context.Context, s RecordStore, q LinkQueue, record normalizer.Record) error {
	if err := s.Save(ctx, record); err != nil {
		return errors.Wrapf(err, "fail to save record %s", record.ID())
	}
	if q == nil || !record.LinksToResolve() {
		return nil
	}
	return errors.Wrapf(q.Enqueue(ctx, record.ID()), "fail to queue links of record %s", record.ID())
}

func recordEpoch(record normalizer.Record) (float64, error) {
	epoch, ok := record.Epoch()
	if !ok {
		return 0, errors.Wrapf(ErrNoTimestamp, "record %s", record.ID())
	}
	return epoch, nil
}

func sortByID(records []normalizer.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID() < records[j].ID()
	})
}

// NoopLinkQueue drops every id, used when no redis is configured.
type NoopLinkQueue struct{}

func (NoopLinkQueue) Enqueue(ctx context.Context, id string) error {
	return nil
}
