package http

import (
	"bytes"
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"rewards/internal/cache"
	"rewards/internal/core"
	applog "rewards/internal/log"
	"rewards/internal/middleware/ratelimit"
	"rewards/internal/middleware/security"
	"rewards/internal/middleware/trace"
	"rewards/internal/records"
	"rewards/internal/services"
	appweb "rewards/web"
)

// Entries is what the handlers need from the entry service.
type Entries interface {
	Roster() core.Roster
	Activities() []string
	StartDate() core.Date
	Today() core.Date
	Snapshot(ctx context.Context) records.LoadResult
	WeeklyStatus(ctx context.Context, child core.Child) (core.WeeklyStatus, error)
	Board(ctx context.Context) []core.WeeklyStatus
	RecordEntry(ctx context.Context, in services.EntryInput) (core.Entry, error)
	SaveGrid(ctx context.Context, rows []services.GridRow) (core.Table, error)
	Reset(ctx context.Context) error
}

var _ Entries = (*services.EntryService)(nil)

// Options configures optional server collaborators.
type Options struct {
	// Ready checks the primary backend for /readyz
	Ready func(ctx context.Context) error
	// CacheStats reports the table cache for /metrics
	CacheStats func() cache.Stats
	RateLimit  ratelimit.Config
	// Backend names the primary backend in /readyz
	Backend string
}

type Server struct {
	http.Server
	templates *template.Template
	entries   Entries
	opts      Options
	log       *applog.Logger

	traceMiddleware *trace.Middleware
	rateLimiter     *ratelimit.Limiter
	metrics         *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, entries Entries, opts Options) *Server {
	mux := http.NewServeMux()
	logger := applog.Default(applog.ComponentHTTP)

	s := &Server{
		entries:         entries,
		opts:            opts,
		log:             logger,
		traceMiddleware: trace.NewMiddleware(security.ClientIP),
		rateLimiter:     ratelimit.NewLimiter(opts.RateLimit),
		metrics:         newAppMetrics(),
	}

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /ui/status", s.handleStatus)
	mux.HandleFunc("GET /ui/board", s.handleBoard)
	mux.HandleFunc("/manage", s.handleManage)
	mux.HandleFunc("/reset", s.handleReset)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(security.ClientIP, TooManyRequestsError)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = applog.Middleware(logger)(h)
	h = s.traceMiddleware.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a template into memory first so a failing template
// never leaves a half-written page.
func (s *Server) render(ctx context.Context, name string, data any) ([]byte, error) {
	if s.templates == nil {
		return nil, errTemplatesNotLoaded
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Template execution failed",
			applog.FieldError, err, applog.FieldOperation, applog.OpRender, "template", name)
		return nil, err
	}
	return buf.Bytes(), nil
}
