// Package server exposes the matcher and the moderation ledger over an
// authenticated HTTP API for operators and dashboards.
package server

import (
	"context"
	"errors"
	"time"

	"chatwarden/internal/config"
	"chatwarden/internal/database"
	"chatwarden/internal/featureflags"
	"chatwarden/internal/ledger"
	"chatwarden/internal/middleware"
	"chatwarden/internal/models"
	"chatwarden/internal/observability"
	"chatwarden/internal/policy"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Per-operator API budget.
const (
	apiRateLimit  = 120
	apiRateWindow = time.Minute
)

// Deps are the already-initialized collaborators the server reads from.
// DB and Redis may be nil; they only feed the health report and the rate
// limiter.
type Deps struct {
	Config  *config.Config
	Matcher *policy.Matcher
	Ledger  *ledger.Ledger
	Flags   *featureflags.Manager
	DB      *gorm.DB
	Redis   *redis.Client
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	matcher        *policy.Matcher
	ledger         *ledger.Ledger
	featureFlags   *featureflags.Manager
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
}

// NewServer builds a Server with its routes installed.
func NewServer(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Matcher == nil {
		return nil, errors.New("server: matcher is required")
	}
	if deps.Ledger == nil {
		deps.Ledger = ledger.New(nil)
	}

	s := &Server{
		config:         deps.Config,
		matcher:        deps.Matcher,
		ledger:         deps.Ledger,
		featureFlags:   deps.Flags,
		db:             deps.DB,
		redis:          deps.Redis,
		promMiddleware: middleware.InitMetrics("chatwarden"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "chatwarden",
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled request error", "error", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)
	return s, nil
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())

	// Copies request and trace ids into the request context for logging.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.HealthCheck)
	app.Get("/health/live", s.LivenessCheck)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api/v1",
		middleware.AuthRequired(s.config.JWTSecret),
		middleware.RateLimit(s.redis, s.config.Env, apiRateLimit, apiRateWindow),
	)

	api.Post("/evaluate", s.EvaluateMessage)

	api.Post("/events", s.RecordEvent)
	api.Get("/events", s.ListEvents)

	api.Get("/stats", s.CountEvents)
	api.Get("/stats/:action", s.CountEventsByType)

	api.Get("/rules", s.ListRules)
	api.Post("/rules/words", s.AddWord)
	api.Post("/rules/patterns", s.AddPattern)

	api.Get("/flags", s.ListFlags)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// HealthCheck reports storage and cache reachability. The bot keeps
// moderating without either, so only a missing database makes it unhealthy.
func (s *Server) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if s.db == nil {
		dbStatus = "unavailable"
	} else if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus != "healthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status":   overall,
		"database": dbStatus,
		"redis":    redisStatus,
		"time":     time.Now(),
	})
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	observability.Logger.Info("admin API listening", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		observability.Logger.Error("error shutting down HTTP server", "error", err)
		return err
	}
	return nil
}
