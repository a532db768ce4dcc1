// Package middleware wires the global fiber middleware chain: CORS, request
// IDs, health probes, API-key auth and rate limiting.
package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/keyauth"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"pdf2png/internal/config"
	"pdf2png/internal/infra/logging"
	"pdf2png/internal/tokens"
)

// APIKeyLocal is the fiber.Ctx local holding the authenticated API key.
const APIKeyLocal = "api_key"

// Deps are the collaborators the middleware chain needs.
type Deps struct {
	// Tokens enables X-API-Key authentication when non-nil.
	Tokens *tokens.Cache
	// Store backs the limiters. Defaults to fiber's in-process storage.
	Store fiber.Storage
}

// TokenLimiters hands out one sliding-window limiter per distinct token limit.
type TokenLimiters struct {
	mu       sync.RWMutex
	handlers map[int]fiber.Handler
	interval time.Duration
	store    fiber.Storage
}

// NewTokenLimiters creates an empty limiter cache.
func NewTokenLimiters(interval time.Duration, store fiber.Storage) *TokenLimiters {
	return &TokenLimiters{handlers: make(map[int]fiber.Handler), interval: interval, store: store}
}

// Get returns a cached limiter for limit, creating one if needed.
func (t *TokenLimiters) Get(limit int) fiber.Handler {
	t.mu.RLock()
	h, ok := t.handlers[limit]
	t.mu.RUnlock()
	if ok {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.handlers[limit]; ok {
		return h
	}
	h = limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        t.interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           t.store,
		KeyGenerator: func(c *fiber.Ctx) string {
			token, _ := c.Locals(APIKeyLocal).(string)
			return "token:" + token
		},
		LimitReached: func(c *fiber.Ctx) error {
			token, _ := c.Locals(APIKeyLocal).(string)
			logging.Warn("Rate limit exceeded", "token", token, "path", c.Path())
			return tooManyRequests(c)
		},
	})
	t.handlers[limit] = h
	return h
}

// TokenRateLimit applies the per-token limit of authenticated requests.
func TokenRateLimit(cache *tokens.Cache, limiters *TokenLimiters) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, ok := c.Locals(APIKeyLocal).(string)
		if !ok || token == "" || cache == nil {
			return c.Next()
		}
		limit := cache.RateLimit(token)
		if limit <= 0 {
			return c.Next()
		}
		return limiters.Get(limit)(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get("User-Agent")))
	return hex.EncodeToString(sum[:])
}

// UserRateLimit limits anonymous requests by client IP and user agent.
// Authenticated requests skip it; their token limit applies instead.
func UserRateLimit(limit int, interval time.Duration, store fiber.Storage) fiber.Handler {
	if limit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}
	userLimiter := limiter.New(limiter.Config{
		Max:               limit,
		Expiration:        interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "user:" + clientKey(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return tooManyRequests(c)
		},
	})
	return func(c *fiber.Ctx) error {
		if token, ok := c.Locals(APIKeyLocal).(string); ok && token != "" {
			return c.Next()
		}
		return userLimiter(c)
	}
}

// APIKeyAuth validates X-API-Key against cache. Requests without the header
// pass through anonymously.
func APIKeyAuth(cache *tokens.Cache) fiber.Handler {
	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:X-API-Key",
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if !cache.Ready() {
				return false, tokens.ErrTokenStoreNotReady
			}
			if !cache.Validate(key) {
				return false, tokens.ErrInvalidAPIKey
			}
			return true, nil
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || c.Get("X-API-Key") == ""
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may call this with a nil error.
			status := fiber.StatusUnauthorized
			if err == nil {
				err = fiber.ErrUnauthorized
			}
			if errors.Is(err, tokens.ErrTokenStoreNotReady) {
				status = fiber.StatusServiceUnavailable
			}
			return jsonError(c, status, err.Error())
		},
	})
}

// RequestLog logs each incoming request with its request ID.
func RequestLog() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	}
}

// Register attaches the global middleware chain to app.
func Register(app *fiber.App, cfg config.Config, deps Deps) {
	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint:  "/ops/health",
		ReadinessEndpoint: "/ops/ready",
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return deps.Tokens == nil || deps.Tokens.Ready()
		},
	}))

	if deps.Tokens != nil {
		app.Use(APIKeyAuth(deps.Tokens))
		app.Use(TokenRateLimit(deps.Tokens, NewTokenLimiters(cfg.RateLimiter.Interval, deps.Store)))
	}

	if cfg.RateLimiter.EnableUserLimiter || cfg.RateLimiter.UserLimit > 0 {
		app.Use(UserRateLimit(cfg.RateLimiter.UserLimit, cfg.RateLimiter.Interval, deps.Store))
	}

	app.Use(RequestLog())
}

func tooManyRequests(c *fiber.Ctx) error {
	return jsonError(c, fiber.StatusTooManyRequests, "Too Many Requests")
}

func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    status,
			"message": msg,
		},
	})
}
