package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisCallTimeout = 500 * time.Millisecond

// Devuelve {contador, ms hasta el fin de la ventana}. Una clave sin TTL
// (p.ej. si el proceso murio entre INCR y PEXPIRE) recibe una ventana nueva.
const redisWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl}
`

type redisScripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisRateLimiter struct {
	client redisScripter
	logger *zap.Logger
	window time.Duration
	max    int
	prefix string
}

// NewRedisRateLimiter comparte la ventana fija entre instancias.
// Si Redis no responde deja pasar y lo registra.
func NewRedisRateLimiter(client *redis.Client, logger *zap.Logger, prefix string, window time.Duration, max int) RateLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return &redisRateLimiter{
		client: client,
		logger: logger,
		window: window,
		max:    max,
		prefix: prefix,
	}
}

func (l *redisRateLimiter) Allow(ctx context.Context, key string) Decision {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return Decision{RetryAfter: l.window}
	}

	count, ttl, err := l.hit(ctx, l.prefix+key)
	if err != nil {
		l.logger.Warn("rate limiter unavailable, allowing request",
			zap.String("prefix", l.prefix),
			zap.Error(err),
		)
		return Decision{Allowed: true}
	}
	return Decision{Allowed: count <= int64(l.max), RetryAfter: ttl}
}

func (l *redisRateLimiter) hit(ctx context.Context, redisKey string) (int64, time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, redisCallTimeout)
	defer cancel()

	res, err := l.client.Eval(ctx, redisWindowScript, []string{redisKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit reply %v", res)
	}
	return res[0], time.Duration(res[1]) * time.Millisecond, nil
}
