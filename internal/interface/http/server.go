// Package http implements the REST API of Classroom Quest Hub: roster and
// catalog management, rewards, the point shop, leaderboards and backups.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/classquest/classroom-hub/internal/interface/http/handlers"
	"github.com/classquest/classroom-hub/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// MaxHeaderBytes - maximum size of request headers.
	MaxHeaderBytes int

	// MaxBodyBytes - maximum size of request bodies.
	MaxBodyBytes int64

	// AllowedOrigins - allowed origins for CORS. Empty disables CORS headers.
	AllowedOrigins []string

	// RateLimitPerMinute - requests per minute per IP (0 = disabled).
	RateLimitPerMinute int

	// APIKeyHeader - header name for API key authentication.
	APIKeyHeader string

	// APIKeyHashes - bcrypt hashes of accepted keys. Empty disables auth.
	APIKeyHashes []string

	Version string
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:               "0.0.0.0",
		Port:               8080,
		ReadTimeout:        15 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        60 * time.Second,
		MaxHeaderBytes:     1 << 20,
		MaxBodyBytes:       4 << 20,
		AllowedOrigins:     []string{"*"},
		RateLimitPerMinute: 300,
		APIKeyHeader:       "X-API-Key",
		Version:            "v1",
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config     Config
	deps       Dependencies
	httpServer *http.Server
	router     *http.ServeMux
	logger     *zap.Logger

	rateLimiter *rateLimiter
	auth        *handlers.APIKeyAuth

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and
// dependencies. It fails only on malformed API key hashes.
func NewServer(config Config, deps Dependencies) (*Server, error) {
	s := &Server{
		config: config,
		deps:   deps,
		router: http.NewServeMux(),
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("http")

	if s.config.APIKeyHeader == "" {
		s.config.APIKeyHeader = "X-API-Key"
	}
	auth, err := handlers.NewAPIKeyAuth(s.config.APIKeyHeader, config.APIKeyHashes, s.denied)
	if err != nil {
		return nil, err
	}
	s.auth = auth

	if config.RateLimitPerMinute > 0 {
		s.rateLimiter = newRateLimiter(config.RateLimitPerMinute, time.Minute)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           config.Address(),
		Handler:        s.buildMiddlewareChain(s.router),
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		IdleTimeout:    config.IdleTimeout,
		MaxHeaderBytes: config.MaxHeaderBytes,
	}

	return s, nil
}

// Handler returns the root handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes. Everything under /api/v1 sits
// behind API key auth.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /live", s.handleLive)
	s.router.HandleFunc("GET /{$}", s.handleRoot)

	api := http.NewServeMux()

	// ─────────────────────────────────────────────────────────────────────────
	// Classes & Roster
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("GET /api/v1/classes", s.handleListClasses)
	api.HandleFunc("POST /api/v1/classes", s.handleCreateClass)
	api.HandleFunc("GET /api/v1/classes/{classID}", s.handleGetClass)
	api.HandleFunc("PUT /api/v1/classes/{classID}", s.handleUpdateClass)
	api.HandleFunc("DELETE /api/v1/classes/{classID}", s.handleDeleteClass)

	api.HandleFunc("GET /api/v1/classes/{classID}/students", s.handleGetRoster)
	api.HandleFunc("POST /api/v1/classes/{classID}/students", s.handleCreateStudent)
	api.HandleFunc("POST /api/v1/classes/{classID}/students/dedupe", s.handleDedupeRoster)
	api.HandleFunc("GET /api/v1/classes/{classID}/leaderboard", s.handleGetLeaderboard)

	// ─────────────────────────────────────────────────────────────────────────
	// Students
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("GET /api/v1/students/{id}", s.handleGetStudent)
	api.HandleFunc("PUT /api/v1/students/{id}", s.handleUpdateStudent)
	api.HandleFunc("DELETE /api/v1/students/{id}", s.handleDeleteStudent)
	api.HandleFunc("POST /api/v1/students/{id}/rewards", s.handleGrantReward)
	api.HandleFunc("GET /api/v1/students/{id}/history", s.handleGetHistory)
	api.HandleFunc("PUT /api/v1/students/{id}/avatar/{slot}", s.handleEquipAvatar)

	// ─────────────────────────────────────────────────────────────────────────
	// Praise Cards
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("GET /api/v1/classes/{classID}/cards", s.handleListCards)
	api.HandleFunc("POST /api/v1/classes/{classID}/cards", s.handleCreateCard)
	api.HandleFunc("PUT /api/v1/cards/{id}", s.handleUpdateCard)
	api.HandleFunc("DELETE /api/v1/cards/{id}", s.handleDeleteCard)
	api.HandleFunc("POST /api/v1/cards/{id}/awards", s.handleAwardCard)

	// ─────────────────────────────────────────────────────────────────────────
	// Missions
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("GET /api/v1/classes/{classID}/missions", s.handleListMissions)
	api.HandleFunc("POST /api/v1/classes/{classID}/missions", s.handleCreateMission)
	api.HandleFunc("PUT /api/v1/missions/{id}", s.handleUpdateMission)
	api.HandleFunc("DELETE /api/v1/missions/{id}", s.handleDeleteMission)
	api.HandleFunc("POST /api/v1/missions/{id}/achievements", s.handleAchieveMission)
	api.HandleFunc("DELETE /api/v1/missions/{id}/achievements/{studentID}", s.handleRevokeMission)

	// ─────────────────────────────────────────────────────────────────────────
	// Roadmaps
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("GET /api/v1/classes/{classID}/roadmaps", s.handleListRoadmaps)
	api.HandleFunc("POST /api/v1/classes/{classID}/roadmaps", s.handleCreateRoadmap)
	api.HandleFunc("GET /api/v1/roadmaps/{id}/board", s.handleGetRoadmapBoard)
	api.HandleFunc("PUT /api/v1/roadmaps/{id}", s.handleUpdateRoadmap)
	api.HandleFunc("DELETE /api/v1/roadmaps/{id}", s.handleDeleteRoadmap)
	api.HandleFunc("POST /api/v1/roadmaps/{id}/steps/{index}/completions", s.handleCompleteStep)
	api.HandleFunc("DELETE /api/v1/roadmaps/{id}/steps/{index}/completions/{studentID}", s.handleUncompleteStep)

	// ─────────────────────────────────────────────────────────────────────────
	// Point Shop
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("GET /api/v1/classes/{classID}/shop/items", s.handleListItems)
	api.HandleFunc("POST /api/v1/classes/{classID}/shop/items", s.handleCreateItem)
	api.HandleFunc("PUT /api/v1/shop/items/{id}", s.handleUpdateItem)
	api.HandleFunc("DELETE /api/v1/shop/items/{id}", s.handleDeleteItem)
	api.HandleFunc("POST /api/v1/shop/items/{id}/purchases", s.handlePurchase)
	api.HandleFunc("GET /api/v1/classes/{classID}/purchases", s.handleListPurchases)

	// ─────────────────────────────────────────────────────────────────────────
	// Backup
	// ─────────────────────────────────────────────────────────────────────────
	api.HandleFunc("GET /api/v1/backup", s.handleBackup)

	s.router.Handle("/api/v1/", handlers.Chain(
		s.auth.Middleware,
		handlers.RequestSizeLimitMiddleware(s.maxBodyBytes()),
	)(api))
}

func (s *Server) maxBodyBytes() int64 {
	if s.config.MaxBodyBytes > 0 {
		return s.config.MaxBodyBytes
	}
	return DefaultConfig().MaxBodyBytes
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE CHAIN
// ══════════════════════════════════════════════════════════════════════════════

// buildMiddlewareChain wraps the router with all middleware. The first
// entry is outermost.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	chain := []handlers.MiddlewareFunc{
		s.requestIDMiddleware,
		s.loggingMiddleware,
		s.recoveryMiddleware,
		handlers.SecurityHeadersMiddleware,
	}
	if len(s.config.AllowedOrigins) > 0 {
		chain = append(chain, s.corsMiddleware)
	}
	if s.rateLimiter != nil {
		chain = append(chain, s.rateLimitMiddleware)
	}
	return handlers.Chain(chain...)(handler)
}

// requestIDMiddleware adds a unique request ID to each request.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
		ctx = logger.WithContext(ctx, s.logger.With(logger.RequestID(requestID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs all HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		s.logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.statusCode),
			logger.Latency(time.Since(start)),
			zap.String("ip", getClientIP(r)),
			logger.RequestID(getRequestID(r.Context())),
		)
	})
}

// recoveryMiddleware recovers from panics and returns 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
					logger.RequestID(getRequestID(r.Context())),
				)
				writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowed := false
		for _, o := range s.config.AllowedOrigins {
			if o == "*" || o == origin {
				allowed = true
				break
			}
		}

		if allowed && origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+s.config.APIKeyHeader+", X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware implements per-IP rate limiting.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.rateLimiter.Allow(getClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			writeJSONError(w, r, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// denied renders auth failures in the common envelope.
func (s *Server) denied(w http.ResponseWriter, r *http.Request, code, message string) {
	s.logger.Warn("request denied", zap.String("reason", code), zap.String("ip", getClientIP(r)))
	writeJSONError(w, r, http.StatusUnauthorized, code, message)
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", zap.String("address", s.config.Address()))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER TYPES AND FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const contextKeyRequestID contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// getRequestID extracts the request ID from context.
func getRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID).(string); ok {
		return id
	}
	return ""
}

// getQueryParamInt extracts an integer query parameter with a default value.
func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ══════════════════════════════════════════════════════════════════════════════

type rateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	rl := &rateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		stop:     make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	valid := rl.prune(rl.requests[key], now.Add(-rl.window))

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}
	rl.requests[key] = append(valid, now)
	return true
}

func (rl *rateLimiter) prune(requests []time.Time, windowStart time.Time) []time.Time {
	valid := requests[:0]
	for _, t := range requests {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}
	return valid
}

func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for key, requests := range rl.requests {
				if valid := rl.prune(requests, now.Add(-rl.window)); len(valid) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Close stops the cleanup goroutine.
func (rl *rateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}
