// Package httpapi is the gateway's HTTP surface: the /auth routes and the
// Microsoft 365 resource routes.
package httpapi

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"

	"github.com/prdeepak/ms365-access/internal/core/ports/driving"
	"github.com/prdeepak/ms365-access/internal/core/services"
	"github.com/prdeepak/ms365-access/internal/logger"
)

// Server timeouts.
const (
	ReadTimeout     = 30 * time.Second
	WriteTimeout    = 30 * time.Second
	ShutdownTimeout = 10 * time.Second
)

// Config holds the HTTP surface settings.
type Config struct {
	// Addr is the listen address, host:port.
	Addr         string
	AllowedHosts []string
	CORSOrigins  []string
	Version      string
}

// Server wraps the fiber app.
type Server struct {
	app  *fiber.App
	addr string
}

// New builds the app with middleware and all routes registered.
func New(cfg Config, tokens driving.TokenManager, gate *services.Gate, graph GraphClient) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "ms365gw",
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		ErrorHandler: handleError,
	})

	app.Use(requestid.New())
	app.Use(requestLogger())
	app.Use(recover.New())
	app.Use(trustedHosts(cfg.AllowedHosts))
	app.Use(cors.New(corsConfig(cfg.CORSOrigins)))

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": cfg.Version})
	})

	NewAuthHandler(tokens).Register(app)
	NewResourceHandler(gate, graph).Register(app)

	return &Server{app: app, addr: cfg.Addr}
}

func corsConfig(origins []string) cors.Config {
	// fiber refuses credentials with a wildcard origin, which is also its default.
	credentials := len(origins) > 0
	for _, o := range origins {
		if o == "*" {
			credentials = false
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "Accept"},
		AllowCredentials: credentials,
	}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	logger.Info("http: listening on %s", s.addr)
	return s.app.Listen(s.addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
