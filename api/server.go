// Package api is quill's HTTP API. Each route validates a JSON request, calls
// exactly one external collaborator and reshapes its answer as JSON.
package api

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/papercomputeco/quill/pkg/storage"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server serves the quill API.
type Server struct {
	config  Config
	stories storage.Driver
	collab  Collaborators
	logger  *zap.Logger
	server  *fiber.App
}

// NewServer creates a Server. stories is required; nil collaborators
// disable their routes.
func NewServer(config Config, stories storage.Driver, collab Collaborators, logger *zap.Logger) (*Server, error) {
	if stories == nil {
		return nil, errors.New("story storage driver is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	s := &Server{
		config:  config,
		stories: stories,
		collab:  collab,
		logger:  logger,
		server:  app,
	}

	app.Use(fiberrecover.New())
	app.Use(requestid.New())
	app.Use(s.accessLog)

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	api := app.Group("/api")
	api.Post("/register", s.handleRegister)
	api.Post("/create-payment-intent", s.handleCreatePaymentIntent)
	api.Get("/connect/:platform", s.handleConnect)
	api.Post("/stories", s.handleCreateStory)
	api.Get("/stories", s.handleListStories)
	api.Get("/stories/:id", s.handleGetStory)
	api.Get("/trends", s.handleTrends)
	api.Post("/generate-story", s.handleGenerateStory)

	return s, nil
}

// Handler exposes the API as a net/http handler.
func (s *Server) Handler() http.Handler {
	return adaptor.FiberApp(s.server)
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting api server", zap.String("listen", s.config.ListenAddr))
	return s.server.Listen(s.config.ListenAddr)
}

// RunWithListener starts the server on an existing listener.
func (s *Server) RunWithListener(listener net.Listener) error {
	s.logger.Info("starting api server", zap.String("listen", listener.Addr().String()))
	return s.server.Listener(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.server.Shutdown()
}

func (s *Server) accessLog(c *fiber.Ctx) error {
	startTime := time.Now()
	err := c.Next()

	s.logger.Info("request",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Int("status", c.Response().StatusCode()),
		zap.Duration("duration", time.Since(startTime)),
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
	)
	return err
}

func errorJSON(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{Error: message})
}

func unavailable(c *fiber.Ctx, feature string) error {
	return errorJSON(c, fiber.StatusServiceUnavailable, feature+" is not configured")
}
