package modules

import (
	"context"
	"encoding/json"

	"github.com/Luismorlan/postmux/ingest"
	"github.com/Luismorlan/postmux/normalizer"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

type NormalizerConfig struct {
	// Name of this module, must be unique.
	Name string
}

// Normalizer turns raw posts of TOPIC_RAW_POST into records published on
// TOPIC_NORMALIZED_RECORD. Posts that cannot be normalized go to the dead
// letter topic.
type Normalizer struct {
	Config     NormalizerConfig
	Normalizer *normalizer.Normalizer
	EventBus   ingest.EventBus

	messages <-chan *message.Message
}

func NewNormalizer(config NormalizerConfig, n *normalizer.Normalizer, e ingest.EventBus) *Normalizer {
	return &Normalizer{Config: config, Normalizer: n, EventBus: e}
}

func (m *Normalizer) Name() string {
	return m.Config.Name
}

func (m *Normalizer) Subscribe(ctx context.Context) error {
	messages, err := m.EventBus.Subscribe(ctx, ingest.TOPIC_RAW_POST)
	if err != nil {
		return err
	}
	m.messages = messages
	return nil
}

func (m *Normalizer) RunModule(ctx context.Context) error {
	if m.messages == nil {
		return errors.New("normalizer is not subscribed")
	}
	for {
		select {
		case msg, ok := <-m.messages:
			if !ok {
				return nil
			}
			m.handle(msg)
			msg.Ack()
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *Normalizer) handle(msg *message.Message) {
	post, err := normalizer.DecodeRawPost(msg.Payload)
	if err != nil {
		deadLetter(m.EventBus, msg, ingest.STAGE_NORMALIZE, err)
		return
	}
	record, _, err := m.Normalizer.Dispatch(map[string]interface{}(post))
	if err != nil {
		Logger.Log.WithField("seq", msg.Metadata.Get(ingest.METADATA_SEQ)).
			Warnln("fail to normalize post:", err)
		deadLetter(m.EventBus, msg, ingest.STAGE_NORMALIZE, err)
		return
	}

	data, err := json.Marshal(record)
	if err != nil {
		deadLetter(m.EventBus, msg, ingest.STAGE_NORMALIZE, err)
		return
	}
	out := message.NewMessage(watermill.NewUUID(), data)
	out.Metadata.Set(ingest.METADATA_SEQ, msg.Metadata.Get(ingest.METADATA_SEQ))
	if err := m.EventBus.Publish(ingest.TOPIC_NORMALIZED_RECORD, out); err != nil {
		Logger.Log.Errorln("fail to publish record", record.ID(), err)
	}
}

func (m *Normalizer) Shutdown() {}
