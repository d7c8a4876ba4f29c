package ingest

import (
	"context"
	"sync"

	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
)

// Engine manages shared resources and execution lifecycle of each module. It
// maintains a shared event bus
type Engine struct {
	// A list of modules that will be run in this Engine. Module's lifetime is
	// bound to Engine's lifetime. Each Module will be ran in a separate routine.
	Modules []Module

	// Root this engine is running on
	ctx context.Context

	// Cancel function for root context, used for graceful shutdown
	cancel context.CancelFunc

	// The EventBus this engine managed.
	EventBus *gochannel.GoChannel

	wg sync.WaitGroup
}

// EventBus is the part of the bus that modules see.
type EventBus interface {
	message.Publisher
	message.Subscriber
}

// NewEventBus returns the bus every ingest engine runs on. Publishing blocks
// until every subscriber acked, so a publish to TOPIC_RAW_POST returns once
// the post went through the whole chain.
func NewEventBus() *gochannel.GoChannel {
	return gochannel.NewGoChannel(
		gochannel.Config{
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewStdLogger(false, false),
	)
}

// Create a new Engine given the provided modules and event bus.
func NewEngine(ms []Module, ctx context.Context, cancel context.CancelFunc, e *gochannel.GoChannel) *Engine {
	return &Engine{
		Modules:  ms,
		ctx:      ctx,
		cancel:   cancel,
		EventBus: e,
	}
}

// Start subscribes every module then runs each of them in its own routine.
// It does not block.
func (e *Engine) Start() error {
	for _, module := range e.Modules {
		if subscriber, ok := module.(Subscriber); ok {
			if err := subscriber.Subscribe(e.ctx); err != nil {
				return errors.Wrapf(err, "module %s cannot subscribe", module.Name())
			}
		}
	}

	for idx := range e.Modules {
		e.wg.Add(1)
		go func(module Module) {
			Logger.Log.Infof("start engine module %s", module.Name())
			defer e.wg.Done()
			RunModuleWithGracefulRestart(e.ctx, module)
			Logger.Log.Infof("Module %s finished execution.", module.Name())
		}(e.Modules[idx])
	}
	return nil
}

// Execute all Engine modules and wait untils all modules to finish execution.
func (e *Engine) Run() error {
	if err := e.Start(); err != nil {
		return err
	}
	e.wg.Wait()
	return nil
}

func (e *Engine) Shutdown() {
	Logger.Log.Infoln("Starting graceful shutdown process. Goodbye!")
	e.cancel()
	// Block until all modules left RunModule.
	e.wg.Wait()

	var wg sync.WaitGroup
	for idx := range e.Modules {
		wg.Add(1)
		go func(module Module) {
			defer wg.Done()
			Logger.Log.Infof("shutdown engine module %s", module.Name())
			module.Shutdown()
			Logger.Log.Infof("Module %s shut down.", module.Name())
		}(e.Modules[idx])
	}
	wg.Wait()

	if err := e.EventBus.Close(); err != nil {
		Logger.Log.Errorln("fail to close event bus:", err)
	}
}
