// Package http exposes the evaluation engine over a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"roundup/internal/cache"
	"roundup/internal/log"
	"roundup/internal/services"
)

// appMetrics holds request-level counters exposed on /metrics. All fields
// are accessed atomically.
type appMetrics struct {
	totalRequests    int64
	totalEvaluations int64
	cacheHits        int64
	cacheMisses      int64
	lastDurationUs   int64
	uptime           time.Time
}

type Server struct {
	http.Server
	logger     *log.Logger
	structured *log.StructuredLogger
	service    *services.EvaluationService

	rateLimiter     *rateLimiter
	securityMetrics securityMetrics
	appMetrics      appMetrics

	// Response cache for the pure evaluation endpoints, keyed by body hash
	responseCache *cache.LRUCache[[]byte]

	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// Options tunes the server beyond its listen address.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, service *services.EvaluationService, logger *log.Logger, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	mux := http.NewServeMux()
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      log.Middleware(httpLogger)(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		logger:        httpLogger,
		structured:    log.NewStructuredLogger(httpLogger),
		service:       service,
		rateLimiter:   newRateLimiter(),
		responseCache: cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		cacheManager:  cache.NewManager(),
		appMetrics:    appMetrics{uptime: time.Now()},
	}

	s.cacheManager.Register(s.responseCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.withMiddleware(s.handleMetrics))
	mux.HandleFunc("/v1/performance", s.withMiddleware(s.handlePerformance))
	mux.HandleFunc("/v1/transactions:parse", s.withMiddleware(s.handleParse))
	mux.HandleFunc("/v1/transactions:validate", s.withMiddleware(s.handleValidate))
	mux.HandleFunc("/v1/transactions:filter", s.withMiddleware(s.handleFilter))
	mux.HandleFunc("/v1/returns:pension", s.withMiddleware(s.handleReturnsPension))
	mux.HandleFunc("/v1/returns:index", s.withMiddleware(s.handleReturnsIndex))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withMiddleware adds security headers, rate limiting, request tracing and
// duration metrics to a handler.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		atomic.AddInt64(&s.appMetrics.totalRequests, 1)
		s.structured.LogHTTPStart(ctx, r, clientIP)

		if detectSuspiciousRequest(r, &s.securityMetrics) {
			s.logger.WarnContext(ctx, "Suspicious request detected",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP, &s.securityMetrics) {
			s.logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldRequestID, requestID,
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		atomic.StoreInt64(&s.appMetrics.lastDurationUs, duration.Microseconds())
		s.structured.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
