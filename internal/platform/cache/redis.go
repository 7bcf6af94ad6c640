package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis client used for permission invalidation
// fan-out.
type Options struct {
	Addr     string
	Password string
	DB       int
	// ClientName shows up in CLIENT LIST, which helps spot subscribers.
	ClientName string
}

const pingTimeout = 5 * time.Second

// New creates a Redis client and pings it with a short deadline. The client
// is closed when the ping fails.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	name := opts.ClientName
	if name == "" {
		name = "hms"
	}
	client := redis.NewClient(&redis.Options{
		Addr:       opts.Addr,
		Password:   opts.Password,
		DB:         opts.DB,
		ClientName: name,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}
