package rest

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewApp builds the Fiber application with middleware and routes registered.
func NewApp(h *Handlers, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	app := fiber.New(fiber.Config{
		AppName:               "CS Evaluation Dashboard",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		UnescapePath:          true,
		ErrorHandler:          errorHandler(logger),
	})

	app.Use(recover.New())
	app.Use(RequestID())
	app.Use(RequestLogger(logger))
	app.Use(Metrics())

	registerRoutes(app, h)
	return app
}

func registerRoutes(app *fiber.App, h *Handlers) {
	app.Get("/healthz", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api", NoStore())
	api.Get("/evaluations", h.ListEvaluations)
	api.Get("/stats", h.GetStats)
	api.Get("/tickets", h.ListTickets)
	api.Get("/tickets/:ticketId", h.GetTicket)
	api.Get("/filters", h.GetFilters)
	api.Get("/snapshot/status", h.GetSnapshotStatus)
}

// errorHandler renders errors that escape the handlers, such as unknown routes,
// in the same {"error": ...} shape.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			message = fe.Message
		}

		if code >= 500 {
			logger.Error("request error",
				zap.Int("status", code),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}
