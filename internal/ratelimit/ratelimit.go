// Package ratelimit caps how often one client may hit the public polling
// endpoints, using a fixed window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type Limiter struct {
	redis  redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
}

func NewLimiter(rdb redis.Cmdable, prefix string, limit int64, window time.Duration) *Limiter {
	return &Limiter{redis: rdb, prefix: prefix, limit: limit, window: window}
}

// Allow counts one hit for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= l.limit, nil
}

// Middleware rejects over-limit clients with 429. Redis failures let the
// request through.
func (l *Limiter) Middleware(api huma.API) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		ip := clientIP(ctx.RemoteAddr())

		ok, err := l.Allow(ctx.Context(), ip)
		if err != nil {
			logrus.WithError(err).WithField("client", ip).Warn("rate limiter unavailable, allowing request")
			next(ctx)
			return
		}
		if !ok {
			ctx.SetHeader("Retry-After", fmt.Sprintf("%d", int(l.window.Seconds())))
			huma.WriteErr(api, ctx, http.StatusTooManyRequests, "Too many requests")
			return
		}
		next(ctx)
	}
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
