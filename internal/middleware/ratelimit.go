package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emre/presentia/internal/app/models/dto"
)

const sweepInterval = 5 * time.Minute

// TokenBucket is an in-memory per-IP rate limiter guarding the redemption
// endpoint against brute-forced session codes. A background sweep drops
// buckets that have been idle long enough to refill completely, so the state
// map does not grow with every client IP ever seen.
type TokenBucket struct {
	capacity int
	rate     int
	mu       sync.Mutex
	state    map[string]*bucket
	done     chan struct{}
	once     sync.Once
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter refilling perMinute tokens up to capacity
// and starts its sweep goroutine.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	l := &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		state:    make(map[string]*bucket),
		done:     make(chan struct{}),
	}

	go l.sweepLoop(sweepInterval)

	return l
}

// GinMiddleware returns a gin handler enforcing per-IP limits.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		if !l.allow(ip) {
			errorDetail := dto.NewErrorDetail(dto.ErrorCodeRateLimited, "Too many attempts, slow down")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponse(errorDetail))
			return
		}
		c.Next()
	}
}

// Close stops the sweep goroutine.
func (l *TokenBucket) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *TokenBucket) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.state[key]
	now := time.Now()
	if !ok {
		b = &bucket{tokens: l.capacity - 1, last: now}
		l.state[key] = b
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	refill := int(elapsed * float64(l.rate))
	if refill > 0 {
		b.tokens += refill
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}

	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// idleCutoff is the age past which a bucket carries no information: it would
// refill to full capacity on its next request anyway.
func (l *TokenBucket) idleCutoff() time.Duration {
	if l.rate <= 0 {
		return sweepInterval
	}
	cutoff := time.Duration(float64(l.capacity)/float64(l.rate)*float64(time.Minute)) + time.Minute
	if cutoff < sweepInterval {
		cutoff = sweepInterval
	}
	return cutoff
}

func (l *TokenBucket) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(time.Now())
		case <-l.done:
			return
		}
	}
}

func (l *TokenBucket) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.idleCutoff()
	for key, b := range l.state {
		if now.Sub(b.last) > cutoff {
			delete(l.state, key)
		}
	}
}
