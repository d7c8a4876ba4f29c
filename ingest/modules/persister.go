package modules

import (
	"context"

	"github.com/Luismorlan/postmux/ingest"
	"github.com/Luismorlan/postmux/normalizer"
	"github.com/Luismorlan/postmux/store"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

type PersisterConfig struct {
	// Name of this module, must be unique.
	Name string
}

// Persister saves every record of TOPIC_NORMALIZED_RECORD and queues the ids
// of records with links to resolve.
type Persister struct {
	Config   PersisterConfig
	Store    store.RecordStore
	Links    store.LinkQueue
	EventBus ingest.EventBus

	messages <-chan *message.Message
}

func NewPersister(config PersisterConfig, s store.RecordStore, q store.LinkQueue, e ingest.EventBus) *Persister {
	return &Persister{Config: config, Store: s, Links: q, EventBus: e}
}

func (p *Persister) Name() string {
	return p.Config.Name
}

func (p *Persister) Subscribe(ctx context.Context) error {
	messages, err := p.EventBus.Subscribe(ctx, ingest.TOPIC_NORMALIZED_RECORD)
	if err != nil {
		return err
	}
	p.messages = messages
	return nil
}

func (p *Persister) RunModule(ctx context.Context) error {
	if p.messages == nil {
		return errors.New("persister is not subscribed")
	}
	for {
		select {
		case msg, ok := <-p.messages:
			if !ok {
				return nil
			}
			p.handle(ctx, msg)
			msg.Ack()
		case <-ctx.Done():
			return nil
		}
	}
}

func (p *Persister) handle(ctx context.Context, msg *message.Message) {
	post, err := normalizer.DecodeRawPost(msg.Payload)
	if err != nil {
		deadLetter(p.EventBus, msg, ingest.STAGE_PERSIST, err)
		return
	}
	record := normalizer.Record(post)
	if err := store.Persist(ctx, p.Store, p.Links, record); err != nil {
		Logger.Log.Errorln(err)
		deadLetter(p.EventBus, msg, ingest.STAGE_PERSIST, err)
	}
}

func (p *Persister) Shutdown() {}
