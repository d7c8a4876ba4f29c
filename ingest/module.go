package ingest

import (
	"context"
	"time"

	Logger "github.com/Luismorlan/postmux/utils/log"
)

const (
	GracefulRetryDelay = 3
)

func RunModuleWithGracefulRestart(ctx context.Context, module Module) {
	for {
		err := module.RunModule(ctx)
		if err == nil || ctx.Err() != nil {
			break
		}
		Logger.Log.Errorf(
			"Module %s exited with error %v, retry in %d seconds",
			module.Name(),
			err,
			GracefulRetryDelay)

		// Wait for a small amount of time and restart.
		select {
		case <-time.After(GracefulRetryDelay * time.Second):
		case <-ctx.Done():
			return
		}
	}
}

type Module interface {
	// RunModule contains the customized logic of the module. It takes in a
	// context object by which its lifecycle is managed. Return error if
	// encountered any error during execution.
	RunModule(ctx context.Context) error

	// Return name of the Module. Uniquely identifies the module instance. Note
	// that if there are multiple instances of the same module, each instance
	// should have a unique name instead of using the same name.
	Name() string

	// Shutdown releases what the module holds once RunModule returned.
	Shutdown()
}

// Subscriber is implemented by modules consuming topics. The engine subscribes
// every module before running any of them, messages published to a topic
// without subscriber are dropped by the event bus.
type Subscriber interface {
	Subscribe(ctx context.Context) error
}
