package ingest

import (
	"context"
	"encoding/json"
	"io"
	"strconv"

	"github.com/Luismorlan/postmux/normalizer"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

// Reader drains a source onto TOPIC_RAW_POST. It is not a module: it runs in
// the caller's routine and its end is the end of the ingestion.
type Reader struct {
	Source   normalizer.Source
	EventBus message.Publisher
}

func NewReader(source normalizer.Source, e message.Publisher) *Reader {
	return &Reader{Source: source, EventBus: e}
}

// Run publishes every object of the source, values of other kinds are skipped.
// It returns the number of published posts once the source is exhausted, or
// the first source or bus error.
func (r *Reader) Run(ctx context.Context) (int64, error) {
	var seq int64
	for {
		if err := ctx.Err(); err != nil {
			return seq, err
		}
		value, err := r.Source.Next()
		if err == io.EOF {
			return seq, nil
		}
		if err != nil {
			return seq, errors.Wrap(err, "fail to read source")
		}
		if _, ok := value.(map[string]interface{}); !ok {
			Logger.Log.Debugf("skip non object value of type %T", value)
			continue
		}

		data, err := json.Marshal(value)
		if err != nil {
			Logger.Log.Errorln("skip value that cannot be encoded:", err)
			continue
		}
		msg := message.NewMessage(watermill.NewUUID(), data)
		msg.Metadata.Set(METADATA_SEQ, strconv.FormatInt(seq, 10))
		if err := r.EventBus.Publish(TOPIC_RAW_POST, msg); err != nil {
			return seq, errors.Wrap(err, "fail to publish raw post")
		}
		seq++
	}
}
