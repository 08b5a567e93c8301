package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"caixinhas/internal/core"
	"caixinhas/internal/log"
	"caixinhas/internal/middleware/ratelimit"
	"caixinhas/internal/middleware/security"
	"caixinhas/internal/middleware/trace"
	"caixinhas/internal/projection"
	"caixinhas/internal/services"
)

// SavingBackend is what the caixinha endpoints need.
type SavingBackend interface {
	CreateSaving(ctx context.Context, in services.SavingInput) (core.Saving, error)
	UpdateSaving(ctx context.Context, id int64, in services.SavingInput) (core.Saving, error)
	DeleteSaving(ctx context.Context, id int64) error
	GetSaving(ctx context.Context, id int64) (core.Saving, error)
	ListSavings(ctx context.Context) ([]core.Saving, error)
	SavingProjection(ctx context.Context, id int64) (core.ProjectionSnapshot, error)
}

// Simulator runs projections against the current reference rates.
type Simulator interface {
	Simulate(ctx context.Context, in projection.Input) (projection.Result, projection.Rates, error)
	CurrentRates(ctx context.Context) (projection.Rates, projection.MonthlyRates, error)
}

// ServerConfig holds the optional knobs of the server.
type ServerConfig struct {
	AllowedOrigins     []string
	RateLimitPerMinute int
	Logger             *log.Logger
}

type readinessCheck struct {
	name  string
	check func(context.Context) error
}

type gauge struct {
	name, help string
	value      func() int64
}

type Server struct {
	http.Server
	savings   SavingBackend
	simulator Simulator
	logger    *log.Logger
	events    *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	mu     sync.RWMutex
	checks []readinessCheck
	gauges []gauge

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, savings SavingBackend, simulator Simulator, cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	limiterCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		limiterCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	s := &Server{
		savings:          savings,
		simulator:        simulator,
		logger:           logger,
		events:           log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(limiterCfg),
		securityDetector: security.NewDetector(),
		appMetrics:       newAppMetrics(),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("POST /api/rendiments", s.handleLumpSum)
	mux.HandleFunc("POST /api/month/rendiment", s.handleRecurring)
	mux.HandleFunc("GET /api/rates", s.handleRates)

	mux.HandleFunc("POST /api/saving/add", s.handleCreateSaving)
	mux.HandleFunc("GET /api/savings", s.handleListSavings)
	mux.HandleFunc("GET /api/saving/{id}", s.handleGetSaving)
	mux.HandleFunc("PUT /api/saving/{id}", s.handleUpdateSaving)
	mux.HandleFunc("DELETE /api/saving/{id}", s.handleDeleteSaving)
	mux.HandleFunc("GET /api/saving/{id}/projection", s.handleSavingProjection)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimited)(handler)
	handler = s.detectSuspicious(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = log.Middleware(logger)(handler)
	handler = security.NewCORS(cfg.AllowedOrigins).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// AddReadinessCheck registers a dependency probed by /readyz.
func (s *Server) AddReadinessCheck(name string, check func(context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, readinessCheck{name: name, check: check})
}

// AddGauge exposes an extra gauge on /metrics.
func (s *Server) AddGauge(name, help string, value func() int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauges = append(s.gauges, gauge{name: name, help: help, value: value})
	sort.Slice(s.gauges, func(i, j int) bool { return s.gauges[i].name < s.gauges[j].name })
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

func (s *Server) detectSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Suspicious request",
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		next.ServeHTTP(w, r)
	})
}

// writeError logs err at a level matching its status and writes the mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := errorResponse(err)
	level := slog.LevelWarn
	if resp.StatusCode() >= 500 {
		level = slog.LevelError
	}
	if resp.StatusCode() == http.StatusServiceUnavailable {
		s.appMetrics.rateUnavailable.Add(1)
	}
	log.FromContext(r.Context()).Logger.Log(r.Context(), level, "Request failed",
		log.NewFields().WithOperation(op).WithError(err).WithComponent(log.ComponentHTTP).ToSlice()...)
	resp.Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
