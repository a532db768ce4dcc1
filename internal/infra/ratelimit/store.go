// Package ratelimit provides the shared storage backing fiber's limiter middleware.
package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"pdf2png/internal/infra/logging"
)

// NewStore returns a Redis-backed limiter store for addr/db. It falls back to
// process-local memory when addr is empty or Redis cannot be reached.
func NewStore(addr string, db int) (store fiber.Storage) {
	store = memoryStorage.New() // safe default
	if addr == "" {
		logging.Info("Using in-memory store for rate limiting")
		return store
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
		}
	}()
	rs := redisStorage.New(redisStorage.Config{
		Addrs:    []string{addr},
		Database: db,
	})
	logging.Info("Using Redis for rate limiting", "addr", addr, "db", db)
	return rs
}
