// Package server exposes the push and fetch paths over HTTP.
package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/rcliao/tally-replica/internal/ingest"
	"github.com/rcliao/tally-replica/internal/store"
)

// Banner is the body of GET /.
const Banner = "Tally replica backend active"

// DefaultBodyLimit fits a full-year export of every category.
const DefaultBodyLimit = 64 << 20

// Options configures the HTTP app.
type Options struct {
	BodyLimit int
}

// New builds the fiber app with every route registered.
func New(svc *ingest.Service, opts Options) *fiber.App {
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}
	app := fiber.New(fiber.Config{
		AppName:               "tally-replica",
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type, Authorization",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(Banner)
	})

	api := app.Group("/api")
	api.Get("/test", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Backend connected successfully",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	(&ImportsAPI{Router: api, Service: svc}).Register()

	return app
}

// errorHandler turns every returned error into a JSON body with an explicit
// status.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		if fe.Code == fiber.StatusNotFound {
			return c.Status(fe.Code).SendString("404 Not Found")
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	case errors.Is(err, ingest.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrCorrupt):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "corrupt", "error": err.Error()})
	}

	log.Errorw("request failed", "method", c.Method(), "path", c.Path(), "err", err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
