package middleware

import (
	"context"
	"sync"
	"time"

	"bulkmail/utils"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures RateLimiter. Non-positive values fall back to
// 100 requests per minute.
type RateLimitConfig struct {
	Requests int
	Per      time.Duration
	// KeyFunc groups requests; defaults to the client IP
	KeyFunc func(*fiber.Ctx) string
	// Context stops the idle-client cleanup when done
	Context context.Context
}

// RateLimiter creates a token-bucket rate limiting middleware
func RateLimiter(cfg RateLimitConfig) fiber.Handler {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	if cfg.Requests <= 0 {
		cfg.Requests = 100
	}
	if cfg.Per <= 0 {
		cfg.Per = time.Minute
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *fiber.Ctx) string { return c.IP() }
	}
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}

	var (
		clients = make(map[string]*client)
		mu      sync.Mutex
	)

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-cfg.Context.Done():
				return
			case <-ticker.C:
				mu.Lock()
				for key, c := range clients {
					if time.Since(c.lastSeen) > 10*time.Minute {
						delete(clients, key)
					}
				}
				mu.Unlock()
			}
		}
	}()

	every := rate.Every(cfg.Per / time.Duration(cfg.Requests))

	return func(c *fiber.Ctx) error {
		key := cfg.KeyFunc(c)

		mu.Lock()
		cl, exists := clients[key]
		if !exists {
			cl = &client{limiter: rate.NewLimiter(every, cfg.Requests)}
			clients[key] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			utils.Log.WithField("key", key).Warn("Rate limit exceeded on %s", c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		}

		return c.Next()
	}
}
