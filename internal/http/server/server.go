// Package server assembles the fiber app: error handling, middleware and routes.
package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"pdf2png/internal/config"
	"pdf2png/internal/http/handlers"
	"pdf2png/internal/http/middleware"
	"pdf2png/internal/infra/logging"
	"pdf2png/internal/tokens"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Config    config.Config
	Converter handlers.Converter
	Stats     handlers.StatsSource
	// Tokens enables API key auth when non-nil.
	Tokens       *tokens.Cache
	LimiterStore fiber.Storage
}

// New creates and configures the fiber app.
func New(deps Deps) *fiber.App {
	cfg := deps.Config
	bodyLimit := cfg.Server.BodyLimitMB * 1024 * 1024
	if bodyLimit <= 0 {
		bodyLimit = fiber.DefaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             bodyLimit,
		ErrorHandler:          errorHandler,
	})

	middleware.Register(app, cfg, middleware.Deps{Tokens: deps.Tokens, Store: deps.LimiterStore})
	registerRoutes(app, deps)

	// Ensure all responses, including 404s, return JSON.
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, deps Deps) {
	h := handlers.NewConvertHandler(deps.Converter, deps.Config.Limits.MaxDocumentBytes)

	app.Get("/", handlers.HandleIndex)
	app.Post("/convert_pdf", h.HandleLegacy)

	v1 := app.Group("/v1")
	v1.Post("/convert", h.HandleConvert)
	v1.Get("/render/stats", handlers.HandleRenderStats(deps.Stats, deps.Config.Render.TimeoutSecs))
	v1.Get("/monitor", monitor.New())
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
		},
	})
}
