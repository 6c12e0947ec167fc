package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gleeclub/portal/backend/pkg/logger"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	mu        sync.Mutex
	tokens    map[string]int
	lastReset time.Time
	rate      int           // requests per window
	window    time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:    make(map[string]int),
		lastReset: time.Now(),
		rate:      rate,
		window:    window,
	}
}

// rateLimitKey buckets authenticated requests by user and the rest by IP.
func rateLimitKey(c *gin.Context) string {
	if username := GetUsername(c); username != "" {
		return "user:" + username
	}
	return "ip:" + c.ClientIP()
}

// RateLimit middleware limits requests per user or IP
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		key := rateLimitKey(c)

		limiter.mu.Lock()

		// Reset if window has passed
		if time.Since(limiter.lastReset) > limiter.window {
			limiter.tokens = make(map[string]int)
			limiter.lastReset = time.Now()
		}

		// Check and increment token count
		count := limiter.tokens[key]
		if count >= limiter.rate {
			limiter.mu.Unlock()

			logger.Warn(c.Request.Context(), "rate limit exceeded",
				"key", key,
				"client_ip", c.ClientIP(),
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
				"code":  "rate_limited",
			})
			return
		}

		limiter.tokens[key] = count + 1
		limiter.mu.Unlock()

		c.Next()
	}
}
