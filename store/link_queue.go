package store

import (
	"context"

	"github.com/Luismorlan/postmux/utils"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

// Redis list consumed by the link resolution worker.
const LinksToResolveKey = "links_to_resolve"

type RedisLinkQueue struct {
	inner *redis.Client
	key   string
}

func NewRedisLinkQueue(client *redis.Client) *RedisLinkQueue {
	return &RedisLinkQueue{inner: client, key: LinksToResolveKey}
}

func NewRedisLinkQueueFromEnv(ctx context.Context) (*RedisLinkQueue, error) {
	client, err := utils.GetRedisClient(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to connect to redis")
	}
	return NewRedisLinkQueue(client), nil
}

func (q *RedisLinkQueue) Enqueue(ctx context.Context, id string) error {
	return q.inner.RPush(ctx, q.key, id).Err()
}

// Pending is the number of ids waiting for the resolver.
func (q *RedisLinkQueue) Pending(ctx context.Context) (int64, error) {
	return q.inner.LLen(ctx, q.key).Result()
}
