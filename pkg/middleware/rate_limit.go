package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mo-amir99/course-market-go/pkg/response"
)

// RateLimiter allows a fixed number of requests per client IP in each window.
type RateLimiter struct {
	name     string
	rate     int
	duration time.Duration
	now      func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	stop    chan struct{}
	once    sync.Once
}

type window struct {
	remaining int
	resetAt   time.Time
}

// NewRateLimiter creates a limiter of rate requests per duration. name separates
// limiters in log output and response messages.
func NewRateLimiter(name string, rate int, duration time.Duration) *RateLimiter {
	rl := &RateLimiter{
		name:     name,
		rate:     rate,
		duration: duration,
		now:      time.Now,
		windows:  make(map[string]*window),
		stop:     make(chan struct{}),
	}
	go rl.sweep()
	return rl
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := rl.allow(c.ClientIP())
		if !ok {
			seconds := int(retryAfter.Round(time.Second) / time.Second)
			if seconds < 1 {
				seconds = 1
			}
			c.Header("Retry-After", strconv.Itoa(seconds))
			response.Error(c, http.StatusTooManyRequests, "Too many requests. Please try again later.", rl.name)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Stop ends the background sweep.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) allow(key string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{remaining: rl.rate, resetAt: now.Add(rl.duration)}
		rl.windows[key] = w
	}

	if w.remaining <= 0 {
		return false, w.resetAt.Sub(now)
	}
	w.remaining--
	return true, 0
}

func (rl *RateLimiter) sweep() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := rl.now()
			rl.mu.Lock()
			for key, w := range rl.windows {
				if !now.Before(w.resetAt) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}
