package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pdf2png/internal/infra/pool"
)

// StatsSource reports render pool usage.
type StatsSource interface {
	Stats() pool.Stats
}

// HandleRenderStats exposes render pool capacity, idle and in_use slots.
// A nil source reports a disabled pool.
func HandleRenderStats(src StatsSource, timeoutSecs int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var s pool.Stats
		if src != nil {
			s = src.Stats()
		}
		return c.JSON(fiber.Map{
			"enabled":      s.Enabled,
			"engine":       s.Engine,
			"capacity":     s.Capacity,
			"idle":         s.Idle,
			"in_use":       s.InUse,
			"acquired":     s.Acquired,
			"failures":     s.Failures,
			"last_failure": s.LastFailure,
			"timeout_secs": timeoutSecs,
		})
	}
}
