package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"smartride/internal/config"
)

// NewRedisClient connects the trip cache / idempotency / revocation client.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, nrApp *newrelic.Application) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if nrApp != nil {
		client.AddHook(&nrRedisHook{})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// nrRedisHook reports redis commands as datastore segments of the request's
// New Relic transaction. The key family ("cache", "revoked", "idempotency")
// is used as the collection name.
type nrRedisHook struct{}

func (h *nrRedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h *nrRedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  cmd.Name(),
				Collection: keyFamily(cmd),
			}
			defer segment.End()
		}
		return next(ctx, cmd)
	}
}

func (h *nrRedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		if txn := newrelic.FromContext(ctx); txn != nil {
			collection := "redis"
			if len(cmds) > 0 {
				collection = keyFamily(cmds[0])
			}
			segment := newrelic.DatastoreSegment{
				StartTime:  txn.StartSegmentNow(),
				Product:    newrelic.DatastoreRedis,
				Operation:  "pipeline",
				Collection: collection,
			}
			defer segment.End()
		}
		return next(ctx, cmds)
	}
}

// keyFamily returns the prefix before the first ':' of the command's key.
// Scripts carry their first key after the script and the key count.
func keyFamily(cmd redis.Cmder) string {
	args := cmd.Args()
	keyAt := 1
	switch cmd.Name() {
	case "eval", "evalsha", "eval_ro", "evalsha_ro":
		keyAt = 3
	}
	if len(args) <= keyAt {
		return "redis"
	}
	key, ok := args[keyAt].(string)
	if !ok || key == "" {
		return "redis"
	}
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
