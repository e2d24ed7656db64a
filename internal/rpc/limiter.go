package rpc

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	config "github.com/thirdweb-dev/txconflict/configs"
	"golang.org/x/time/rate"
)

const (
	LimiterScopeWorker = "worker"
	LimiterScopeShared = "shared"
	LimiterScopeRedis  = "redis"

	defaultRedisLimiterKey = "txconflict:rpc:limiter"
)

// Limiter spaces out dispatched calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

// IntervalLimiter keeps at least 1/callsPerSecond between consecutive calls of its holder.
type IntervalLimiter struct {
	limiter *rate.Limiter
}

// NewIntervalLimiter returns an unlimited limiter for callsPerSecond <= 0.
func NewIntervalLimiter(callsPerSecond float64) *IntervalLimiter {
	limit := rate.Inf
	if callsPerSecond > 0 {
		limit = rate.Limit(callsPerSecond)
	}
	return &IntervalLimiter{limiter: rate.NewLimiter(limit, 1)}
}

func (l *IntervalLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// RedisLimiter enforces one call per interval across processes sharing a redis key.
type RedisLimiter struct {
	client   redis.Cmdable
	key      string
	interval time.Duration
}

func NewRedisLimiter(client redis.Cmdable, key string, callsPerSecond float64) *RedisLimiter {
	if key == "" {
		key = defaultRedisLimiterKey
	}
	var interval time.Duration
	if callsPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / callsPerSecond)
	}
	return &RedisLimiter{client: client, key: key, interval: interval}
}

func (l *RedisLimiter) Wait(ctx context.Context) error {
	if l.interval <= 0 {
		return ctx.Err()
	}
	for {
		acquired, err := l.client.SetNX(ctx, l.key, 1, l.interval).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire rate limit slot: %w", err)
		}
		if acquired {
			return nil
		}
		ttl, err := l.client.PTTL(ctx, l.key).Result()
		if err != nil {
			return fmt.Errorf("failed to read rate limit slot ttl: %w", err)
		}
		if ttl <= 0 {
			ttl = time.Millisecond
		}
		if err := sleep(ctx, ttl); err != nil {
			return err
		}
	}
}

// InitRedis connects to the redis instance backing the shared limiter.
func InitRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}
	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Info().Str("addr", cfg.Addr).Msg("Redis client initialized successfully")
	return client, nil
}

// LimiterFactory hands out a limiter per worker according to the configured scope.
type LimiterFactory struct {
	scope          string
	callsPerSecond float64
	shared         Limiter
}

func NewLimiterFactory(ctx context.Context, cfg config.RPCConfig) (*LimiterFactory, func(), error) {
	callsPerSecond := GetCallsPerSecond()
	scope := cfg.Limiter.Scope
	if scope == "" {
		scope = LimiterScopeWorker
	}
	factory := &LimiterFactory{scope: scope, callsPerSecond: callsPerSecond}
	cleanup := func() {}

	switch scope {
	case LimiterScopeWorker:
	case LimiterScopeShared:
		factory.shared = NewIntervalLimiter(callsPerSecond)
	case LimiterScopeRedis:
		client, err := InitRedis(ctx, cfg.Limiter.Redis)
		if err != nil {
			return nil, cleanup, err
		}
		factory.shared = NewRedisLimiter(client, cfg.Limiter.Redis.Key, callsPerSecond)
		cleanup = func() { client.Close() }
	default:
		return nil, cleanup, fmt.Errorf("unknown limiter scope %q", scope)
	}
	return factory, cleanup, nil
}

// ForWorker returns the limiter a single worker should dispatch through.
func (f *LimiterFactory) ForWorker() Limiter {
	if f.shared != nil {
		return f.shared
	}
	return NewIntervalLimiter(f.callsPerSecond)
}

func (f *LimiterFactory) Scope() string {
	return f.scope
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
