package normalizer

import (
	"io"

	Logger "github.com/Luismorlan/postmux/utils/log"
)

// Source is a pull based, possibly endless, stream of decoded values. Next
// returns io.EOF once the stream is exhausted.
type Source interface {
	Next() (interface{}, error)
}

// SliceSource serves values from memory.
type SliceSource struct {
	values []interface{}
	pos    int
}

func NewSliceSource(values ...interface{}) *SliceSource {
	return &SliceSource{values: values}
}

func (s *SliceSource) Next() (interface{}, error) {
	if s.pos >= len(s.values) {
		return nil, io.EOF
	}
	value := s.values[s.pos]
	s.pos++
	return value, nil
}

// Dispatch handles one value of a stream. ok is false for values that are not
// objects, which are to be skipped. Objects that already are records come back
// unchanged, anything else is normalized.
func (n *Normalizer) Dispatch(value interface{}) (record Record, ok bool, err error) {
	m, ok := asMap(value)
	if !ok {
		return nil, false, nil
	}
	if IsNormalized(m) {
		return Record(m), true, nil
	}
	record, err = n.Normalize(RawPost(m))
	return record, true, err
}

// BatchIterator lazily normalizes a Source, one value at a time.
type BatchIterator struct {
	normalizer *Normalizer
	source     Source
}

func (n *Normalizer) Batch(source Source) *BatchIterator {
	return &BatchIterator{normalizer: n, source: source}
}

// Next returns the next record. Errors from the source are returned as is,
// io.EOF included. A post that cannot be normalized returns its
// *MissingRequiredFieldError and the iterator moves on at the next call.
func (it *BatchIterator) Next() (Record, error) {
	for {
		value, err := it.source.Next()
		if err != nil {
			return nil, err
		}
		record, ok, err := it.normalizer.Dispatch(value)
		if !ok {
			Logger.Log.Debugf("skip non object value of type %T", value)
			continue
		}
		return record, err
	}
}
