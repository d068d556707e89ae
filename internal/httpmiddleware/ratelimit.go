package httpmiddleware

import (
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// pruneThreshold is the number of tracked clients above which refilled
// buckets are dropped.
const pruneThreshold = 4096

// SimpleTokenBucket is an in-memory per-client limiter. It guards the login
// form, so state lives in one process.
type SimpleTokenBucket struct {
	capacity float64
	perSec   float64
	mu       sync.Mutex
	clients  map[string]*bucket
	now      func() time.Time
}

type bucket struct {
	tokens  float64
	updated time.Time
}

// NewSimpleTokenBucket creates a limiter holding capacity tokens per client,
// refilled continuously at perMinute. capacity <= 0 means perMinute.
func NewSimpleTokenBucket(capacity, perMinute int) *SimpleTokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &SimpleTokenBucket{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		clients:  make(map[string]*bucket),
		now:      time.Now,
	}
}

// GinMiddleware rejects clients that ran out of tokens with 429. A limiter
// with a non-positive rate lets everything through.
func (l *SimpleTokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l.perSec <= 0 {
			c.Next()
			return
		}
		key := c.ClientIP()
		if key == "" {
			key = "unknown"
		}
		if !l.Allow(key) {
			c.Header("Retry-After", "60")
			c.String(http.StatusTooManyRequests, "Too many login attempts, try again in a minute.")
			c.Abort()
			return
		}
		c.Next()
	}
}

// Allow spends one of key's tokens, reporting false when none is left.
func (l *SimpleTokenBucket) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= pruneThreshold {
			l.pruneLocked(now)
		}
		b = &bucket{tokens: l.capacity, updated: now}
		l.clients[key] = b
	} else {
		b.tokens = l.refill(b, now)
		b.updated = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *SimpleTokenBucket) refill(b *bucket, now time.Time) float64 {
	elapsed := now.Sub(b.updated).Seconds()
	if elapsed <= 0 {
		return b.tokens
	}
	return math.Min(l.capacity, b.tokens+elapsed*l.perSec)
}

// pruneLocked forgets clients whose bucket is full again.
func (l *SimpleTokenBucket) pruneLocked(now time.Time) {
	for key, b := range l.clients {
		if l.refill(b, now) >= l.capacity {
			delete(l.clients, key)
		}
	}
}
