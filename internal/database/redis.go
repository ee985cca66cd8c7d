package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// pingTimeout bounds the startup reachability check. The CLI should fail fast
// rather than hang when the session Redis is down.
const pingTimeout = 3 * time.Second

// NewRedisClient connects to the Redis holding client sessions and checks it
// answers. The caller owns the returned client.
func NewRedisClient(ctx context.Context, url string, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse session store URL: %w", err)
	}
	opt.DialTimeout = pingTimeout

	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("session store %s unreachable: %w", opt.Addr, err)
	}

	log.Debug().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Session store connected")

	return rdb, nil
}
