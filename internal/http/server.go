package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"payrollforms/internal/cache"
	"payrollforms/internal/controller"
	"payrollforms/internal/log"
	"payrollforms/internal/settings"
	appweb "payrollforms/web"

	"github.com/gorilla/mux"
)

// readyCacheTTL spaces out backend probes; a spreadsheet ping is a remote call.
const readyCacheTTL = 5 * time.Second

// SheetNamer is the part of the spreadsheet backend that settings can change.
type SheetNamer interface {
	SetSheetName(name string)
}

// Deps are the collaborators the server renders and mutates.
type Deps struct {
	Controller *controller.Controller
	Settings   *settings.Store
	// Sheets is nil unless the spreadsheet backend is active.
	Sheets SheetNamer
	// Ready reports backend health for /readyz.
	Ready   func(ctx context.Context) error
	Backend string
	Logger  *log.Logger
	// RequestsPerMinute caps mutating requests per client. Zero uses the default.
	RequestsPerMinute int
}

type Server struct {
	http.Server
	ctrl     *controller.Controller
	settings *settings.Store
	sheets   SheetNamer
	ready    func(ctx context.Context) error
	backend  string

	templates   *template.Template
	readyCache  *cache.LRU[error]
	rateLimiter *rateLimiter
	metrics     *securityMetrics
	headers     headersConfig
	logger      *log.Logger
	startedAt   time.Time

	saveFailed   atomic.Bool
	unsubscribe  func()
	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		ctrl:        deps.Controller,
		settings:    deps.Settings,
		sheets:      deps.Sheets,
		ready:       deps.Ready,
		backend:     deps.Backend,
		readyCache:  cache.NewLRU[error](1, readyCacheTTL),
		rateLimiter: newRateLimiter(deps.RequestsPerMinute),
		metrics:     &securityMetrics{},
		headers:     defaultHeadersConfig(),
		logger:      logger,
		startedAt:   time.Now(),
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	s.unsubscribe = s.ctrl.Subscribe(s.observe)
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(log.Middleware(s.logger), log.RequestIDMiddleware(requestID), s.withSecurity)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			static.ServeHTTP(w, r)
		}))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	r.HandleFunc("/ui/forms", s.handleFormsPartial).Methods(http.MethodGet)
	r.HandleFunc("/forms", s.handleAddForm).Methods(http.MethodPost)
	// registered before /forms/{id} so "clear" is not taken for an id
	r.HandleFunc("/forms/clear", s.handleClearAll).Methods(http.MethodPost)
	r.HandleFunc("/forms/{id}", s.handleEditForm).Methods(http.MethodPost)
	r.HandleFunc("/forms/{id}", s.handleDeleteForm).Methods(http.MethodDelete)
	r.HandleFunc("/forms/{id}/delete", s.handleDeleteForm).Methods(http.MethodPost)
	r.HandleFunc("/forms/{id}/duplicate", s.handleDuplicateForm).Methods(http.MethodPost)
	r.HandleFunc("/month/{direction:prev|next|today}", s.handleMonth).Methods(http.MethodPost)

	r.HandleFunc("/export/{format}", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/api/forms", s.handleAPIForms).Methods(http.MethodGet)

	r.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	r.HandleFunc("/settings", s.handleSaveSettings).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		s.unsubscribe()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurity applies security headers, probe detection, rate limiting on
// mutating requests and request logging.
func (s *Server) withSecurity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		clientIP := extractClientIP(r)
		reqLog := log.FromContext(ctx)
		sl := log.NewStructuredLogger(reqLog)

		sl.LogHTTPStart(ctx, r, clientIP)

		if reason := detectSuspiciousRequest(r, s.metrics); reason != "" {
			reqLog.WithComponent(log.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path,
				"reason", reason)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead && !s.rateLimiter.allow(clientIP, s.metrics) {
			reqLog.WithComponent(log.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		s.headers.apply(w, r)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		sl.LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var templateFuncs = template.FuncMap{
	"lines": func(s string) int {
		n := strings.Count(s, "\n") + 1
		if n < 3 {
			return 3
		}
		return n
	},
}
