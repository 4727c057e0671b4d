// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/nkram/creditrail/internal/auth"
	"github.com/nkram/creditrail/internal/config"
	"github.com/nkram/creditrail/internal/events"
	"github.com/nkram/creditrail/internal/health"
	"github.com/nkram/creditrail/internal/ledger"
	"github.com/nkram/creditrail/internal/logging"
	"github.com/nkram/creditrail/internal/metrics"
	"github.com/nkram/creditrail/internal/order"
	"github.com/nkram/creditrail/internal/ratelimit"
	"github.com/nkram/creditrail/internal/realtime"
	"github.com/nkram/creditrail/internal/recon"
	"github.com/nkram/creditrail/internal/security"
	"github.com/nkram/creditrail/internal/traces"
	"github.com/nkram/creditrail/internal/user"
	"github.com/nkram/creditrail/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg           *config.Config
	authMgr       *auth.Manager
	users         user.Store
	orders        order.Store
	ledgerService *ledger.Service
	reconService  *recon.Service
	reconTimer    *recon.Timer
	realtimeHub   *realtime.Hub
	healthReg     *health.Registry
	rateLimiter   *ratelimit.Limiter
	db            *sql.DB // nil if using in-memory
	router        *gin.Engine
	httpSrv       *http.Server
	logger        *slog.Logger
	tracesDown    func(context.Context) error
	cancelRunCtx  context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server instance
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, "json"),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.healthReg = health.NewRegistry()
	s.healthReg.Register("startup", func(ctx context.Context) health.Status {
		if !s.ready.Load() {
			return health.Status{Name: "startup", Healthy: false, Detail: "starting"}
		}
		return health.Status{Name: "startup", Healthy: true}
	})

	// Storage (Postgres if DATABASE_URL set, otherwise in-memory)
	var (
		entries    ledger.Store
		reconStore recon.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.Ping(); err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		s.db = db
		s.users = user.NewPostgresStore(db)
		s.orders = order.NewPostgresStore(db)
		s.authMgr = auth.NewManager(auth.NewPostgresStore(db))
		entries = ledger.NewPostgresStore(db)
		reconStore = recon.NewPostgresStore(db)
		s.healthReg.Register("database", health.DatabaseChecker(db))
		s.logger.Info("using PostgreSQL storage", "url", maskDSN(cfg.DatabaseURL))
	} else {
		memUsers := user.NewMemoryStore()
		memOrders := order.NewMemoryStore()
		memEntries := ledger.NewMemoryStore(memUsers)
		memMarkers := events.NewMemoryStore()

		s.users = memUsers
		s.orders = memOrders
		s.authMgr = auth.NewManager(auth.NewMemoryStore())
		entries = memEntries
		reconStore = recon.NewMemoryStore(memMarkers, memOrders, memEntries)
		s.logger.Info("using in-memory storage (data will not persist)")
	}

	s.ledgerService = ledger.NewService(entries)

	// Realtime hub for WebSocket streaming
	s.realtimeHub = realtime.NewHub(s.logger)

	// Reconciliation: webhook processing plus the periodic sweep for
	// orders that never got a payment event
	s.reconService = recon.NewService(reconStore, s.orders, entries, recon.Config{
		WebhookSecret:  cfg.WebhookSecret,
		CheckoutSecret: cfg.CheckoutSecret,
		SiteID:         cfg.SiteID,
	}, s.realtimeHub)
	s.reconTimer = recon.NewTimer(s.reconService, cfg.SweepInterval, cfg.SweepMaxAge, s.logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// maskDSN hides password in connection string for logging
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS (allow all origins for demo - restrict in production)
	s.router.Use(security.CORSMiddleware([]string{"*"}))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Rate limiting. The provider webhook is exempt: retries authenticate
	// by signature and dropping them delays reconciliation.
	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	rlCfg.SkipPaths = []string{"/webhooks/provider"}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.healthReg.RegisterRoutes(s.router)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// Provider webhook. Lives outside /v1: it is signed by the provider,
	// not authenticated by API key.
	reconHandler := recon.NewHandler(s.reconService)
	reconHandler.RegisterWebhookRoutes(s.router)

	// WebSocket for real-time payment and balance events
	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	// V1 API group
	v1 := s.router.Group("/v1")

	userHandler := user.NewHandler(s.users, s.authMgr)
	orderHandler := order.NewHandler(s.orders)
	ledgerHandler := ledger.NewHandler(s.ledgerService)

	// PUBLIC ROUTES (signup returns the API key)
	userHandler.RegisterRoutes(v1)

	// PROTECTED ROUTES (require API key)
	protected := v1.Group("")
	protected.Use(auth.Middleware(s.authMgr), auth.RequireAuth())
	{
		userHandler.RegisterProtectedRoutes(protected)
		orderHandler.RegisterProtectedRoutes(protected)
		ledgerHandler.RegisterProtectedRoutes(protected)
		reconHandler.RegisterProtectedRoutes(protected)
	}

	// ADMIN ROUTES (require X-Admin-Secret on top of an API key)
	admin := v1.Group("/admin")
	admin.Use(auth.Middleware(s.authMgr), auth.RequireAuth(), auth.RequireAdmin(s.cfg.AdminSecret))
	{
		ledgerHandler.RegisterAdminRoutes(admin)
		reconHandler.RegisterAdminRoutes(admin)
	}
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "creditrail",
		"description": "Payment reconciliation and credit ledger",
		"version":     "0.1.0",
	})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	// Create a cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	// Tracing (no-op when OTEL_EXPORTER_OTLP_ENDPOINT is unset)
	shutdown, err := traces.Init(runCtx, s.cfg.OTLPEndpoint, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize tracing", "error", err)
	} else {
		s.tracesDown = shutdown
	}

	if s.db != nil {
		metrics.StartDBStatsCollector(runCtx, s.db, 15*time.Second)
	}

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"site", s.cfg.SiteID,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.realtimeHub.Run(runCtx)

	// Start the unreconciled-order sweep
	go s.reconTimer.Start(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, sweep timer)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
	}

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
		s.logger.Info("rate limiter stopped")
	}

	// Flush traces
	if s.tracesDown != nil {
		if err := s.tracesDown(ctx); err != nil {
			s.logger.Error("traces shutdown error", "error", err)
		}
	}

	// Close database connection pool
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("database close error", "error", err)
		} else {
			s.logger.Info("database connection closed")
		}
	}

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
