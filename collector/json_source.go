package collector

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// JSONSource decodes a stream of JSON values, one per line or simply
// concatenated. Numbers are kept as json.Number.
type JSONSource struct {
	decoder *json.Decoder
	err     error
}

func NewJSONSource(r io.Reader) *JSONSource {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()
	return &JSONSource{decoder: decoder}
}

// Next returns io.EOF at the end of the stream. A syntax error is returned as
// is and every later call returns it again, the decoder cannot resync.
func (s *JSONSource) Next() (interface{}, error) {
	if s.err != nil {
		return nil, s.err
	}
	var value interface{}
	if err := s.decoder.Decode(&value); err != nil {
		if err == io.EOF {
			s.err = io.EOF
		} else {
			s.err = errors.Wrap(err, "fail to decode json stream")
		}
		return nil, s.err
	}
	return value, nil
}
