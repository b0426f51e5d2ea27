package http

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"allowance/internal/core"
	applog "allowance/internal/log"
	"allowance/internal/middleware/ratelimit"
	"allowance/internal/middleware/security"
	"allowance/internal/middleware/trace"
	"allowance/internal/services"
	appweb "allowance/web"
)

// LedgerService is what the handlers need from the service layer.
// *services.LedgerService implements it.
type LedgerService interface {
	AddEntry(ctx context.Context, item string, amount int64, date string) (core.Entry, error)
	Records(ctx context.Context) (services.Records, error)
	Summary(ctx context.Context, month string) (core.MonthSummary, string, error)
	Home(ctx context.Context) (services.Home, error)
	CurrentMonth() string

	Goals(ctx context.Context) ([]core.Goal, error)
	AddGoal(ctx context.Context, g core.Goal) error
	RemoveGoal(ctx context.Context, goal string) error
	Presets(ctx context.Context) ([]core.Preset, error)
	AddPreset(ctx context.Context, p core.Preset) error
	RemovePreset(ctx context.Context, label string) error

	Export(ctx context.Context, t core.Table) ([]byte, error)
	Import(ctx context.Context, t core.Table, r io.Reader) error
}

// Options tune the server.
type Options struct {
	// RateLimitPerMinute caps POST/DELETE requests per client; 0 disables.
	RateLimitPerMinute int
	MaxUploadBytes     int64
	// Ready is probed by /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

const (
	defaultMaxUploadBytes = 5 << 20
	maxJSONBodyBytes      = 64 << 10
)

type Server struct {
	http.Server
	svc       LedgerService
	templates *template.Template
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	detector  *security.Detector
	maxUpload int64
	ready     func(ctx context.Context) error
	started   time.Time
	logger    *slog.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a server ready to
// Serve on a listener.
func NewServer(svc LedgerService, opts Options, logger *slog.Logger) *Server {
	logger = applog.WithComponent(logger, applog.ComponentHTTP)
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}

	s := &Server{
		svc:       svc,
		detector:  security.NewDetector(logger),
		maxUpload: opts.MaxUploadBytes,
		ready:     opts.Ready,
		started:   time.Now(),
		logger:    logger,
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/records", s.handleListRecords)
	mux.HandleFunc("POST /api/records", s.handleAddRecord)
	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/home", s.handleHome)

	mux.HandleFunc("GET /api/goals", s.handleListGoals)
	mux.HandleFunc("POST /api/goals", s.handleAddGoal)
	mux.HandleFunc("DELETE /api/goals", s.handleDeleteGoal)
	mux.HandleFunc("GET /api/presets", s.handleListPresets)
	mux.HandleFunc("POST /api/presets", s.handleAddPreset)
	mux.HandleFunc("DELETE /api/presets", s.handleDeletePreset)

	mux.Handle("GET /export", security.NoStore(http.HandlerFunc(s.handleExport)))
	mux.HandleFunc("POST /import", s.handleImport)

	var handler http.Handler = mux
	if opts.RateLimitPerMinute > 0 {
		cfg := ratelimit.DefaultConfig()
		cfg.RequestsPerMinute = opts.RateLimitPerMinute
		cfg.Logger = logger
		s.limiter = ratelimit.NewLimiter(cfg)
		handler = s.limiter.Middleware(s.detector.ExtractClientIP, nil)(handler)
	}
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.detector.Middleware(handler)

	s.Server = http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
