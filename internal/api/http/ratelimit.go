package http

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	apperrors "github.com/spec-kit/contact-service/pkg/util"
)

// RateLimitConfig bounds requests per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CacheSize         int
	TTL               time.Duration
}

// NewRateLimitPerIP keeps one token bucket per client IP in an expiring LRU, so idle
// clients are forgotten after TTL and memory stays bounded by CacheSize.
func NewRateLimitPerIP(cfg RateLimitConfig) fiber.Handler {
	if cfg.RequestsPerSecond <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 10000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	var mu sync.Mutex
	visitors := expirable.NewLRU[string, *rate.Limiter](cfg.CacheSize, nil, cfg.TTL)

	limiterFor := func(ip string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		lim, ok := visitors.Get(ip)
		if !ok {
			lim = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
			visitors.Add(ip, lim)
		}
		return lim
	}

	return func(c *fiber.Ctx) error {
		if !limiterFor(c.IP()).Allow() {
			c.Set(fiber.HeaderRetryAfter, "1")
			return apperrors.NewRateLimited()
		}
		return c.Next()
	}
}
