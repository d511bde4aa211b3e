package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/healthrisk/pkg/common/logger"
	"github.com/synaptica-ai/healthrisk/pkg/observability/metrics"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// TokenBucket is a per-process limiter with one bucket per key. Buckets idle
// long enough to have refilled are swept, since they equal a fresh one.
type TokenBucket struct {
	rps   float64
	burst float64
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

func NewTokenBucket(rps, burst int) *TokenBucket {
	if burst < 1 {
		burst = 1
	}
	tb := &TokenBucket{
		rps:     float64(rps),
		burst:   float64(burst),
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
	if rps > 0 {
		tb.idle = time.Duration(float64(time.Second) * tb.burst / tb.rps)
	}
	return tb
}

func (t *TokenBucket) Allow(_ context.Context, key string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweep(now)

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{tokens: t.burst, last: now}
		t.buckets[key] = b
	}
	b.tokens += now.Sub(b.last).Seconds() * t.rps
	if b.tokens > t.burst {
		b.tokens = t.burst
	}
	b.last = now
	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// sweep runs at most once per idle period. Without refill (rps <= 0) nothing
// is evicted.
func (t *TokenBucket) sweep(now time.Time) {
	if t.idle <= 0 {
		return
	}
	if t.lastSweep.IsZero() {
		t.lastSweep = now
		return
	}
	if now.Sub(t.lastSweep) < t.idle {
		return
	}
	for key, b := range t.buckets {
		if now.Sub(b.last) >= t.idle {
			delete(t.buckets, key)
		}
	}
	t.lastSweep = now
}

// RedisLimiter shares a fixed one-second window across replicas. It fails
// open: if Redis is unreachable the request is allowed and the error returned.
type RedisLimiter struct {
	client redis.Cmdable
	prefix string
	limit  int64
	now    func() time.Time
}

func NewRedisLimiter(client redis.Cmdable, prefix string, limit int) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: int64(limit), now: time.Now}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	window := l.now().Unix()
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, key, window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return true, err
	}
	return incr.Val() <= l.limit, nil
}

// ClientKey identifies the caller by remote IP.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func RateLimit(limiter Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, err := limiter.Allow(r.Context(), ClientKey(r))
			if err != nil {
				logger.WithError(err).Warn("Rate limiter unavailable, allowing request")
			}
			if !allowed {
				metrics.ObserveRateLimited()
				w.Header().Set("Retry-After", "1")
				WriteError(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
