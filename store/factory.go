package store

import (
	"context"
	"os"

	"github.com/Luismorlan/postmux/app_config"
	Logger "github.com/Luismorlan/postmux/utils/log"
	"github.com/pkg/errors"
)

// NewRecordStore builds the store named by the STORE app config value.
func NewRecordStore(ctx context.Context, kind string) (RecordStore, error) {
	switch kind {
	case app_config.StoreMongo:
		return NewMongoRecordStoreFromEnv(ctx)
	case app_config.StorePostgres:
		return NewPostgresRecordStoreFromEnv()
	case app_config.StoreMemory, "":
		Logger.Log.Warn("records are kept in memory and lost on exit")
		return NewMemoryRecordStore(), nil
	}
	return nil, errors.Errorf("unknown store %q", kind)
}

// NewLinkQueueFromEnv returns a redis queue when REDIS_HOST is set and a queue
// dropping every id otherwise.
func NewLinkQueueFromEnv(ctx context.Context) (LinkQueue, error) {
	if os.Getenv("REDIS_HOST") == "" {
		Logger.Log.Info("REDIS_HOST not set, links to resolve are not queued")
		return NoopLinkQueue{}, nil
	}
	return NewRedisLinkQueueFromEnv(ctx)
}
