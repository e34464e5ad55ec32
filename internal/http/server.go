// Package http serves the roster upload form, runs projections and hands
// back the results.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"capext/internal/cache"
	"capext/internal/core"
	applog "capext/internal/log"
	"capext/internal/middleware/ratelimit"
	"capext/internal/middleware/security"
	"capext/internal/middleware/trace"
	"capext/internal/services"
	appweb "capext/web"
)

// Projector is what the handlers need from the projection service.
type Projector interface {
	Project(ctx context.Context, req services.ProjectionRequest) (core.Run, core.Projection, error)
	Run(ctx context.Context, id int64) (core.Run, error)
	RecentRuns(ctx context.Context, limit int) ([]core.Run, error)
}

// Options configures a Server. Zero values fall back to defaults.
type Options struct {
	Addr               string
	MaxUploadBytes     int64
	ResultCacheSize    int
	ResultCacheTTL     time.Duration
	RateLimitPerMinute int
	// Ready reports whether the run store is reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	// TemplatesFS overrides the embedded templates.
	TemplatesFS fs.FS
	Logger      *applog.Logger
}

type appMetrics struct {
	projections atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	startedAt   time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	projector Projector
	ready     func(ctx context.Context) error
	logger    *applog.Logger

	maxUploadBytes int64
	results        *cache.ResultCache
	cacheManager   *cache.Manager
	rateLimiter    *ratelimit.Limiter
	detector       *security.Detector
	tracer         *trace.Middleware
	appMetrics     appMetrics

	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	"formatDate": core.FormatDate,
	"formatTime": formatTime,
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options, projector Projector) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.ResultCacheSize <= 0 {
		opts.ResultCacheSize = 100
	}
	if opts.ResultCacheTTL <= 0 {
		opts.ResultCacheTTL = 30 * time.Minute
	}
	if opts.TemplatesFS == nil {
		opts.TemplatesFS = appweb.TemplatesFS
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	detector := security.NewDetector()

	s := &Server{
		projector:      projector,
		ready:          opts.Ready,
		logger:         logger,
		maxUploadBytes: opts.MaxUploadBytes,
		results:        cache.NewResultCache(opts.ResultCacheSize, opts.ResultCacheTTL),
		cacheManager:   cache.NewManager(opts.Logger),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector:   detector,
		tracer:     trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		appMetrics: appMetrics{startedAt: time.Now()},
	}

	s.cacheManager.Register(s.results)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(opts.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /project", limit(http.HandlerFunc(s.handleProject)))
	mux.HandleFunc("GET /download/{id}", s.handleDownload)
	mux.HandleFunc("GET /ui/runs", s.handleRuns)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.tracer.Middleware(detector.Middleware(headers.Middleware(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).Warn("Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError("Too many requests. Please try again later.").Write(w)
}
