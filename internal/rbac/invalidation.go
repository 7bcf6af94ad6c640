package rbac

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultInvalidationChannel carries role invalidations between processes.
const DefaultInvalidationChannel = "rbac.role.invalidate"

const catalogToken = "catalog"

// RedisInvalidator drops the local cache entry and broadcasts the
// invalidation so other processes sharing the store drop theirs.
// Messages have the form "<origin>|<role id>" or "<origin>|catalog".
type RedisInvalidator struct {
	local   Invalidator
	client  *redis.Client
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRedisInvalidator wraps local with a Redis pub/sub fan-out. A nil local
// makes a publish-only invalidator for processes without a cache, such as
// the seed tool.
func NewRedisInvalidator(local Invalidator, client *redis.Client, channel string, logger *slog.Logger) *RedisInvalidator {
	if local == nil {
		local = nopInvalidator{}
	}
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisInvalidator{
		local:   local,
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// InvalidateRole drops roleID locally and publishes it. A failed publish is
// logged; other processes then converge through the cache TTL.
func (i *RedisInvalidator) InvalidateRole(ctx context.Context, roleID int64) error {
	if err := i.local.InvalidateRole(ctx, roleID); err != nil {
		return err
	}
	i.publish(ctx, strconv.FormatInt(roleID, 10))
	return nil
}

// InvalidateCatalog drops the catalog snapshot locally and publishes it.
func (i *RedisInvalidator) InvalidateCatalog(ctx context.Context) error {
	if err := i.local.InvalidateCatalog(ctx); err != nil {
		return err
	}
	i.publish(ctx, catalogToken)
	return nil
}

func (i *RedisInvalidator) publish(ctx context.Context, target string) {
	if i.client == nil {
		return
	}
	if err := i.client.Publish(ctx, i.channel, i.origin+"|"+target).Err(); err != nil {
		i.logger.Warn("publish rbac invalidation", slog.String("target", target), slog.Any("error", err))
	}
}

// Listen subscribes to the channel and applies invalidations published by
// other processes until ctx is cancelled. It blocks; ready, when non-nil, is
// closed once the subscription is confirmed.
func (i *RedisInvalidator) Listen(ctx context.Context, ready chan<- struct{}) error {
	if i.client == nil {
		if ready != nil {
			close(ready)
		}
		<-ctx.Done()
		return nil
	}
	pubsub := i.client.Subscribe(ctx, i.channel)
	defer func() { _ = pubsub.Close() }()
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	if ready != nil {
		close(ready)
	}
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			i.apply(ctx, msg.Payload)
		}
	}
}

func (i *RedisInvalidator) apply(ctx context.Context, payload string) {
	origin, target, found := strings.Cut(payload, "|")
	if !found {
		i.logger.Warn("malformed rbac invalidation", slog.String("payload", payload))
		return
	}
	if origin == i.origin {
		return
	}
	if target == catalogToken {
		_ = i.local.InvalidateCatalog(ctx)
		return
	}
	roleID, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		i.logger.Warn("malformed rbac invalidation", slog.String("payload", payload))
		return
	}
	_ = i.local.InvalidateRole(ctx, roleID)
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateRole(context.Context, int64) error { return nil }
func (nopInvalidator) InvalidateCatalog(context.Context) error     { return nil }

var _ Invalidator = (*RedisInvalidator)(nil)
