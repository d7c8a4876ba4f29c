package modules

import (
	"context"
	"sync"

	"github.com/Luismorlan/postmux/ingest"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
)

const (
	stateNormalized = "normalized"
	stateDeadLetter = "dead_letter"
)

type ReporterConfig struct {
	Name string
}

// StatsdClient is satisfied by *statsd.Client.
type StatsdClient interface {
	Incr(name string, tags []string, rate float64) error
}

// Reporter's job is to listen to different channels and aggregate results,
// sending to Datadog (Or other service if there's any) for monitoring purpose.
//
type Reporter struct {
	Config ReporterConfig

	Statsd StatsdClient

	EventBus ingest.EventBus

	records     <-chan *message.Message
	deadLetters <-chan *message.Message

	mu     sync.Mutex
	counts map[string]int64
}

func NewReporter(config ReporterConfig, statsd StatsdClient, e ingest.EventBus) *Reporter {
	return &Reporter{
		Config:   config,
		Statsd:   statsd,
		EventBus: e,
		counts:   map[string]int64{},
	}
}

func (r *Reporter) Subscribe(ctx context.Context) error {
	records, err := r.EventBus.Subscribe(ctx, ingest.TOPIC_NORMALIZED_RECORD)
	if err != nil {
		return err
	}
	deadLetters, err := r.EventBus.Subscribe(ctx, ingest.TOPIC_DEAD_LETTER)
	if err != nil {
		return err
	}
	r.records, r.deadLetters = records, deadLetters
	return nil
}

// Report record state to datadog.
func (r *Reporter) report(state string, tags ...string) {
	r.mu.Lock()
	r.counts[state]++
	r.mu.Unlock()

	if r.Statsd == nil {
		return
	}
	err := r.Statsd.Incr(ingest.DDOG_RECORD_STATE_COUNTER, append([]string{"state:" + state}, tags...), 1)
	if err != nil {
		Logger.Log.Infoln("cannot report record state")
	}
}

func (r *Reporter) RunModule(ctx context.Context) error {
	if r.records == nil || r.deadLetters == nil {
		return errors.New("reporter is not subscribed")
	}
	records, deadLetters := r.records, r.deadLetters
	for records != nil || deadLetters != nil {
		select {
		case msg, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			r.report(stateNormalized)
			msg.Ack()
		case msg, ok := <-deadLetters:
			if !ok {
				deadLetters = nil
				continue
			}
			r.report(stateDeadLetter, "stage:"+msg.Metadata.Get(ingest.METADATA_STAGE))
			Logger.Log.WithField("seq", msg.Metadata.Get(ingest.METADATA_SEQ)).
				Infoln("dead letter:", msg.Metadata.Get(ingest.METADATA_ERROR))
			msg.Ack()
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// Normalized and DeadLetters return how many messages were seen so far.
func (r *Reporter) Normalized() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[stateNormalized]
}

func (r *Reporter) DeadLetters() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[stateDeadLetter]
}

func (r *Reporter) Name() string {
	return r.Config.Name
}

func (r *Reporter) Shutdown() {
	Logger.Log.Infof("%d records normalized, %d dead letters", r.Normalized(), r.DeadLetters())
}
