package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"khoroch/internal/auth"
	applog "khoroch/internal/log"
	"khoroch/internal/metrics"
	"khoroch/internal/middleware/ratelimit"
	"khoroch/internal/middleware/security"
	"khoroch/internal/middleware/trace"
	"khoroch/internal/services"
	"khoroch/internal/session"
	"khoroch/internal/storage"
	appweb "khoroch/web"
)

const (
	requestTimeout = 7 * time.Second
	maxFormBytes   = 64 << 10
)

// Options carries everything the server needs from the rest of the process.
type Options struct {
	Addr          string
	Store         storage.Store
	Expenses      *services.ExpenseService
	Sessions      *session.Manager
	Authenticator auth.Authenticator
	Tokens        *auth.TokenManager
	// Names lists every user in display order; used for the per-person totals.
	Names              []string
	Metrics            *metrics.Metrics
	Logger             *applog.Logger
	Location           *time.Location
	RateLimitPerMinute int
	SecureCookies      bool
	Now                func() time.Time
}

type Server struct {
	http.Server

	templates *template.Template
	validate  *validator.Validate
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIPResolver

	store         storage.Store
	expenses      *services.ExpenseService
	sessions      *session.Manager
	authenticator auth.Authenticator
	tokens        *auth.TokenManager
	names         []string
	metrics       *metrics.Metrics
	logger        *applog.Logger
	loc           *time.Location
	secureCookies bool
	now           func() time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires routes and middleware.
func NewServer(opts Options) (*Server, error) {
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	static, err := fs.Sub(appweb.Static, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}

	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(opts.Sessions.Active)
	}

	s := &Server{
		templates:     t,
		validate:      newValidator(),
		clientIP:      security.NewClientIPResolver(),
		store:         opts.Store,
		expenses:      opts.Expenses,
		sessions:      opts.Sessions,
		authenticator: opts.Authenticator,
		tokens:        opts.Tokens,
		names:         opts.Names,
		metrics:       opts.Metrics,
		logger:        opts.Logger.WithComponent(applog.ComponentHTTP),
		loc:           opts.Location,
		secureCookies: opts.SecureCookies,
		now:           opts.Now,
	}

	limits := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limits.RequestsPerMinute = opts.RateLimitPerMinute
	}
	s.limiter = ratelimit.NewLimiter(limits)

	mux := http.NewServeMux()

	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.Handler())

	s.route(mux, "GET /login", s.handleLoginPage)
	s.route(mux, "POST /login", s.handleLogin)
	s.route(mux, "POST /logout", s.authed(s.handleLogout))
	s.route(mux, "GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})
	s.route(mux, "GET /dashboard", s.authed(s.handleDashboard))
	s.route(mux, "GET /personal", s.authed(s.handlePersonal))
	s.route(mux, "GET /history", s.authed(s.handleHistory))
	s.route(mux, "GET /history/export", s.authed(s.handleExport))
	s.route(mux, "POST /expenses", s.authed(s.handleCreateExpense))
	s.route(mux, "GET /expenses/{id}/edit", s.authed(s.handleEditExpense))
	s.route(mux, "POST /expenses/{id}", s.authed(s.handleUpdateExpense))
	s.route(mux, "POST /expenses/{id}/delete", s.authed(s.handleDeleteExpense))
	s.route(mux, "POST /refresh", s.authed(s.handleRefresh))

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.clientIP.ClientIP, []string{http.MethodPost}, s.handleRateLimited)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(s.logger, s.clientIP.ClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// route registers an application page under pattern. Pages are never cached,
// and their latency is recorded with the pattern as the metric label, which
// keeps label cardinality bounded.
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.Handle(pattern, security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &trace.ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		h(rw, r)
		s.metrics.ObserveRequest(pattern, r.Method, rw.StatusCode, time.Since(start))
	})))
}

// Shutdown stops background routines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready only when the record store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.store.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.ClientIP(r), applog.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	s.renderError(w, r, http.StatusTooManyRequests, "Too many requests, slow down a little.")
}
