package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimiterConfig tunes the per-client token bucket.
type RateLimiterConfig struct {
	RequestsPerSecond int
	BurstSize         int
	CleanupInterval   time.Duration
}

// DefaultLoginRateLimiterConfig is sized for credential endpoints:
// slow refill, small burst.
func DefaultLoginRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		RequestsPerSecond: 1,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

type clientState struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter is an in-process token bucket keyed by client.
type RateLimiter struct {
	config  *RateLimiterConfig
	clients map[string]*clientState
	mu      sync.Mutex
	stopCh  chan struct{}
}

// NewRateLimiter starts the limiter and its idle-state janitor.
func NewRateLimiter(config *RateLimiterConfig) *RateLimiter {
	if config == nil {
		config = DefaultLoginRateLimiterConfig()
	}

	rl := &RateLimiter{
		config:  config,
		clients: make(map[string]*clientState),
		stopCh:  make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

// Allow reports whether one more request from key fits the bucket.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	state, exists := rl.clients[key]
	if !exists {
		rl.clients[key] = &clientState{
			tokens:     float64(rl.config.BurstSize - 1),
			lastUpdate: now,
		}
		return true
	}

	elapsed := now.Sub(state.lastUpdate).Seconds()
	state.tokens += elapsed * float64(rl.config.RequestsPerSecond)
	if state.tokens > float64(rl.config.BurstSize) {
		state.tokens = float64(rl.config.BurstSize)
	}
	state.lastUpdate = now

	if state.tokens < 1 {
		return false
	}
	state.tokens--
	return true
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, state := range rl.clients {
				if now.Sub(state.lastUpdate) > 10*time.Minute {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop shuts down the janitor goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// RateLimitMiddleware throttles by client IP. Used on login routes to
// slow down credential stuffing.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "too many requests, slow down",
				"retry_after": 1,
			})
			return
		}
		c.Next()
	}
}
