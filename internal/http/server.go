package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
	"fintrack/internal/services"

	"github.com/gorilla/mux"
)

// requestBodyOverhead is allowed on top of the attachment ceiling for the
// other multipart fields and boundaries.
const requestBodyOverhead = 1 << 20

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the application services the handlers call.
type Services struct {
	Auth         *services.AuthService
	Transactions *services.TransactionService
	Categories   *services.CategoryService
	Planner      *services.PlannerService
	DB           Pinger
}

type Config struct {
	Addr               string
	SecureCookies      bool
	RateLimitPerMinute int
	TrustedProxies     []string
	MaxUploadBytes     int64
}

type Server struct {
	http.Server
	logger *applog.Logger

	auth         *services.AuthService
	transactions *services.TransactionService
	categories   *services.CategoryService
	planner      *services.PlannerService
	db           Pinger

	secureCookies  bool
	maxRequestBody int64

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	startedAt        time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc Services, logger *applog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("configure trusted proxies: %w", err)
	}

	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:           logger.WithComponent(applog.ComponentHTTP),
		auth:             svc.Auth,
		transactions:     svc.Transactions,
		categories:       svc.Categories,
		planner:          svc.Planner,
		db:               svc.DB,
		secureCookies:    cfg.SecureCookies,
		maxRequestBody:   cfg.MaxUploadBytes + requestBodyOverhead,
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		startedAt:        time.Now(),
	}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})
	s.routes(router)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		MethodNotAllowedError(allowedMethods(router, r)).Write(w)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, detector.ExtractClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, please try again later").Write(w)
	})

	var handler http.Handler = router
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s, nil
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	r.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodGet, http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)

	api.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)

	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleGetTransaction).Methods(http.MethodGet)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleUpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id:[0-9]+}", s.handleDeleteTransaction).Methods(http.MethodDelete)
	api.HandleFunc("/transactions/{id:[0-9]+}/attachment", s.handleDeleteAttachment).Methods(http.MethodDelete)
	api.HandleFunc("/attachments/{key}", s.handleGetAttachment).Methods(http.MethodGet)

	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/download-csv", s.handleDownloadCSV).Methods(http.MethodGet)
	api.HandleFunc("/export/sheets", s.handleExportSheets).Methods(http.MethodPost)

	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleCreateCategory).Methods(http.MethodPost)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleUpdateCategory).Methods(http.MethodPut)
	api.HandleFunc("/categories/{id:[0-9]+}", s.handleDeleteCategory).Methods(http.MethodDelete)

	api.HandleFunc("/notes", s.handleListNotes).Methods(http.MethodGet)
	api.HandleFunc("/notes", s.handleCreateNote).Methods(http.MethodPost)
	api.HandleFunc("/notes/{id:[0-9]+}", s.handleUpdateNote).Methods(http.MethodPut)
	api.HandleFunc("/notes/{id:[0-9]+}", s.handleDeleteNote).Methods(http.MethodDelete)

	api.HandleFunc("/reminders", s.handleListReminders).Methods(http.MethodGet)
	api.HandleFunc("/reminders", s.handleCreateReminder).Methods(http.MethodPost)
	api.HandleFunc("/reminders/{id:[0-9]+}", s.handleUpdateReminder).Methods(http.MethodPut)
	api.HandleFunc("/reminders/{id:[0-9]+}", s.handleDeleteReminder).Methods(http.MethodDelete)

	api.HandleFunc("/calendar/events", s.handleCalendarFeed).Methods(http.MethodGet)
	api.HandleFunc("/calendar/events", s.handleCreateEvent).Methods(http.MethodPost)
	api.HandleFunc("/calendar/events/{id:[0-9]+}", s.handleUpdateEvent).Methods(http.MethodPut)
	api.HandleFunc("/calendar/events/{id:[0-9]+}", s.handleDeleteEvent).Methods(http.MethodDelete)
}

// parseBody limits the body to the upload ceiling and decodes it.
func (s *Server) parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxRequestBody)
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return p, nil
}

var routeMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete,
}

// allowedMethods lists the methods some route accepts for r's path.
func allowedMethods(router *mux.Router, r *http.Request) string {
	var allowed []string
	for _, m := range routeMethods {
		candidate := r.Clone(r.Context())
		candidate.Method = m
		var match mux.RouteMatch
		if router.Match(candidate, &match) && match.MatchErr == nil && match.Route != nil {
			allowed = append(allowed, m)
		}
	}
	return strings.Join(allowed, ", ")
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

// Close stops background routines without waiting for connections. Tests use it.
func (s *Server) Close() error {
	s.rateLimiter.Stop()
	return s.Server.Close()
}
