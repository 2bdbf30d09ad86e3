// Package server sets up the HTTP server with all routes
package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/saaj376/SafeTrace/internal/config"
	"github.com/saaj376/SafeTrace/internal/crowd"
	"github.com/saaj376/SafeTrace/internal/feedback"
	"github.com/saaj376/SafeTrace/internal/fusion"
	"github.com/saaj376/SafeTrace/internal/health"
	"github.com/saaj376/SafeTrace/internal/logging"
	"github.com/saaj376/SafeTrace/internal/metrics"
	"github.com/saaj376/SafeTrace/internal/monitor"
	"github.com/saaj376/SafeTrace/internal/network"
	"github.com/saaj376/SafeTrace/internal/ratelimit"
	"github.com/saaj376/SafeTrace/internal/realtime"
	"github.com/saaj376/SafeTrace/internal/risk"
	"github.com/saaj376/SafeTrace/internal/routing"
	"github.com/saaj376/SafeTrace/internal/security"
	"github.com/saaj376/SafeTrace/internal/sos"
	"github.com/saaj376/SafeTrace/internal/validation"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies
type Server struct {
	cfg          *config.Config
	net          *network.Network
	riskStore    *risk.Store
	crowdTracker *crowd.Tracker
	crowdTimer   *crowd.Timer
	feedbackSvc  *feedback.Service
	fusionEngine *fusion.Engine
	finder       *routing.Finder
	monitorSvc   *monitor.Service
	sosSvc       *sos.Service
	realtimeHub  *realtime.Hub
	rateLimiter  *ratelimit.Limiter
	healthReg    *health.Registry
	db           *sql.DB // nil if using in-memory
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server
type Option func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a new server with all dependencies wired up.
//
// The road network and risk table load at startup; failures degrade rather
// than abort, so the process still serves SOS and feedback traffic when the
// data files are missing.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	net, err := network.LoadFromFile(cfg.GraphPath)
	if err != nil {
		s.logger.Error("road network unavailable, routing disabled",
			"path", cfg.GraphPath, "error", err)
	} else {
		s.logger.Info("road network loaded",
			"nodes", net.NumNodes(), "segments", net.NumSegments())
	}
	s.net = net

	riskStore, err := risk.Load(cfg.RiskDataPath)
	if err != nil {
		s.logger.Warn("risk data unavailable, using fallback scores",
			"path", cfg.RiskDataPath, "error", err)
		riskStore = risk.NewUnavailable()
	} else {
		s.logger.Info("risk data loaded", "nodes", riskStore.Len())
	}
	s.riskStore = riskStore

	s.crowdTracker = crowd.NewTracker(time.Duration(cfg.RollingWindowMinutes) * time.Minute)
	s.crowdTimer = crowd.NewTimer(s.crowdTracker,
		time.Duration(cfg.SyncIntervalSeconds)*time.Second, s.logger)
	s.feedbackSvc = feedback.NewService(feedback.NewMemoryStore())

	s.fusionEngine = fusion.NewEngine(fusionConfig(cfg), s.riskStore, s.crowdTracker, s.feedbackSvc)
	s.finder = routing.NewFinder(s.net, s.fusionEngine)
	s.monitorSvc = monitor.NewService(s.net, s.riskStore, monitor.Options{
		LookaheadSteps:     cfg.HazardLookaheadSteps,
		RiskThreshold:      cfg.RiskSpikeThreshold,
		MaxDeviationMeters: cfg.MaxDeviationMeters,
	})

	s.realtimeHub = realtime.NewHub(s.logger)

	var sosStore sos.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		s.db = db
		s.logger.Info("using PostgreSQL SOS store", "dsn", maskDSN(cfg.DatabaseURL))

		pgStore := sos.NewPostgresStore(db)
		if err := pgStore.Migrate(ctx); err != nil {
			s.logger.Warn("SOS store migration failed", "error", err)
		}
		if n, err := pgStore.CountActive(ctx); err == nil {
			metrics.ActiveSOSSessions.Set(float64(n))
		}
		sosStore = pgStore
	} else {
		s.logger.Info("using in-memory SOS store")
		sosStore = sos.NewMemoryStore()
	}
	s.sosSvc = sos.NewService(sosStore, s.realtimeHub)

	s.setupHealthChecks()
	s.setupRouter()

	s.healthy.Store(true)

	return s, nil
}

// fusionConfig builds the threat-fusion configuration from environment-backed
// settings. Stealth mode penalizes crowded segments; safe and escort modes
// reward them.
func fusionConfig(cfg *config.Config) fusion.Config {
	fc := fusion.Config{
		Strategy:       fusion.Strategy(cfg.FusionStrategy),
		FeedbackWeight: cfg.FeedbackWeight,
		Profiles:       make(map[fusion.Mode]fusion.Profile, len(fusion.Modes())),
	}
	for _, mode := range fusion.Modes() {
		p := fusion.Profile{
			RiskSensitivity:  cfg.ModeRiskSensitivity[string(mode)],
			ClassMultipliers: cfg.ClassMultipliers[string(mode)],
		}
		switch mode {
		case fusion.ModeStealth:
			p.CrowdCoefficient = cfg.StealthCrowdPenalty
		case fusion.ModeSafe, fusion.ModeEscort:
			p.CrowdCoefficient = -cfg.SafetyCrowdBonus
		}
		fc.Profiles[mode] = p
	}
	return fc
}

// setupHealthChecks registers the subsystem checkers.
func (s *Server) setupHealthChecks() {
	s.healthReg = health.NewRegistry()

	s.healthReg.Register("network", func(ctx context.Context) health.Status {
		if s.net == nil {
			return health.Unhealthy("network", "road network not loaded")
		}
		return health.Healthy("network")
	})

	s.healthReg.Register("risk_data", func(ctx context.Context) health.Status {
		if !s.riskStore.Available() {
			return health.Unhealthy("risk_data", "risk table not loaded, fallback scores in use")
		}
		return health.Healthy("risk_data")
	})

	if s.db != nil {
		s.healthReg.Register("database", func(ctx context.Context) health.Status {
			if err := s.db.PingContext(ctx); err != nil {
				return health.Unhealthy("database", err.Error())
			}
			return health.Healthy("database")
		})
	}
}

// setupRouter builds the gin engine with middleware and routes.
func (s *Server) setupRouter() {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}))

	s.router.Use(security.HeadersMiddleware())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Request-ID", "X-Device-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(s.cfg.AllowedOrigins) == 1 && s.cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.cfg.AllowedOrigins
	}
	s.router.Use(cors.New(corsCfg))

	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	rlCfg := ratelimit.DefaultConfig()
	if s.cfg.RateLimitRPM > 0 {
		rlCfg.RequestsPerMinute = s.cfg.RateLimitRPM
	}
	s.rateLimiter = ratelimit.New(rlCfg)
	s.router.Use(s.rateLimiter.Middleware())

	s.router.Use(metrics.Middleware())
	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	s.router.GET("/ws", func(c *gin.Context) {
		s.realtimeHub.HandleWebSocket(c.Writer, c.Request)
	})

	v1 := s.router.Group("/v1")
	{
		routing.NewHandler(s.finder).RegisterRoutes(v1)
		monitor.NewHandler(s.monitorSvc, s.finder).RegisterRoutes(v1)
		crowd.NewHandler(s.crowdTracker).RegisterRoutes(v1)
		feedback.NewHandler(s.feedbackSvc).RegisterRoutes(v1)
		sos.NewHandler(s.sosSvc).RegisterRoutes(v1)
	}
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func (s *Server) healthHandler(c *gin.Context) {
	healthy, statuses := s.healthReg.CheckAll(c.Request.Context())

	status := "healthy"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status": status,
		"checks": statuses,
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

// requestIDMiddleware attaches a request id to the context and response.
func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Header("X-Request-ID", requestID)

		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger.With("request_id", requestID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// loggingMiddleware logs each request at a level based on the response status.
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		logger := logging.L(c.Request.Context()).With(
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
		switch {
		case status >= 500:
			logger.Error("request failed")
		case status >= 400:
			logger.Warn("request rejected")
		default:
			logger.Info("request handled")
		}
	}
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the server and blocks until the context is cancelled or a
// shutdown signal arrives.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

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
		s.logger.Info("server starting", "port", s.cfg.Port, "env", s.cfg.Env)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	go s.realtimeHub.Run(runCtx)
	go s.crowdTimer.Start(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server, draining in-flight requests.
func (s *Server) Shutdown() error {
	s.ready.Store(false)

	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to notice the readiness flip
	if s.cfg.IsProduction() {
		time.Sleep(5 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	s.crowdTimer.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.db != nil {
		if closeErr := s.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	s.healthy.Store(false)
	s.logger.Info("server stopped")
	return err
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
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
