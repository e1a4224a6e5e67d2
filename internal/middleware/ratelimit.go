package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/mmutisya/shuledesk/pkg/errors"
	"github.com/mmutisya/shuledesk/pkg/response"
)

// windowCounter tracks request counts for one (clientIP, route) pair within
// the current fixed window.
type windowCounter struct {
	count     int
	windowEnd time.Time
}

// RateLimit caps requests per (clientIP, route) within a fixed window. The
// counters live in process memory, which is enough for a single-instance
// deployment; a fleet needs a shared store in front of it.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	var (
		mu       sync.Mutex
		counters = make(map[string]*windowCounter)
	)

	if window > 0 {
		tick := time.NewTicker(window)
		// Sweep expired counters so idle clients do not accumulate.
		go func() {
			for range tick.C {
				now := time.Now()
				mu.Lock()
				for key, ct := range counters {
					if now.After(ct.windowEnd) {
						delete(counters, key)
					}
				}
				mu.Unlock()
			}
		}()
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		ct, ok := counters[key]
		if !ok || now.After(ct.windowEnd) {
			ct = &windowCounter{windowEnd: now.Add(window)}
			counters[key] = ct
		}
		ct.count++
		remaining := maxRequests - ct.count
		resetIn := time.Until(ct.windowEnd)
		mu.Unlock()

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if ct.count > maxRequests {
			response.Error(c, apperrors.New("RATE_LIMITED", "too many requests", http.StatusTooManyRequests))
			c.Abort()
			return
		}

		c.Next()
	}
}
