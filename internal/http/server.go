package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"carteira/internal/cache"
	"carteira/internal/log"
	"carteira/internal/middleware/ratelimit"
	"carteira/internal/middleware/security"
	"carteira/internal/middleware/trace"
	"carteira/internal/services"
	"carteira/web"
)

const (
	// handlerTimeout bounds one request end to end, backend fetch included.
	handlerTimeout = 7 * time.Second

	chartCacheSize = 64
	chartCacheTTL  = 5 * time.Minute

	staticCacheMaxAge = 3600
)

// Server is the dashboard HTTP server: pages, HTMX partials, chart JSON and
// the operational endpoints, all reading through the dataset service.
type Server struct {
	http.Server

	logger     *log.Logger
	structured *log.StructuredLogger
	templates  *template.Template
	datasets   *services.DatasetService

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	headers     *security.HeadersMiddleware
	tracer      *trace.Middleware

	chartCache *cache.LRUCache[chartPayload]

	startedAt      time.Time
	simulationsRun int64
	chartHits      int64
	chartMisses    int64

	shutdownOnce sync.Once
}

// NewServer creates the dashboard server on addr. A nil logger falls back to
// the default configuration.
func NewServer(addr string, datasets *services.DatasetService, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	httpLogger := logger.WithComponent(log.ComponentHTTP)

	templates, err := template.ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		httpLogger.Warn("Failed to parse templates", log.FieldError, err.Error())
		templates = template.New("empty")
	}

	detector := security.NewDetector()
	structured := log.NewStructuredLogger(httpLogger)

	s := &Server{
		logger:      httpLogger,
		structured:  structured,
		templates:   templates,
		datasets:    datasets,
		rateLimiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		detector:    detector,
		headers:     security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		tracer:      trace.NewMiddleware(detector.ExtractClientIP, structured),
		chartCache:  cache.NewLRUCache[chartPayload](chartCacheSize, chartCacheTTL),
		startedAt:   time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	s.Addr = addr
	s.Handler = s.tracer.Middleware(s.headers.Middleware(s.screen(mux)))
	s.ReadTimeout = 10 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 120 * time.Second

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	// Pages.
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/lancamentos", s.handleTransactionsPage)
	mux.HandleFunc("/proventos", s.handleDividendsPage)
	mux.HandleFunc("/simulacoes", s.handleSimulationsPage)
	for _, page := range positionPages {
		mux.HandleFunc(page.Path, s.positionsHandler(page))
	}

	// HTMX partials.
	mux.HandleFunc("/ui/visao-geral", s.handleOverviewPartial)
	mux.HandleFunc("/ui/alocacao", s.handleAllocationPartial)
	mux.HandleFunc("/ui/marcos", s.handleMilestonesPartial)
	mux.HandleFunc("/ui/lancamentos-tabela", s.handleTransactionsTable)
	mux.HandleFunc("/ui/proventos-tabela", s.handleDividendsTable)
	mux.HandleFunc("/ui/proventos-consolidado", s.handleDividendSummaryTable)

	// Chart JSON.
	mux.HandleFunc("/chart/lancamentos", s.handleTransactionsChart)
	mux.HandleFunc("/chart/proventos", s.handleDividendsChart)
	mux.HandleFunc("/chart/proventos-acumulado", s.handleDividendsAccumulatedChart)
	mux.HandleFunc("/chart/alocacao", s.handleAllocationChart)
	mux.HandleFunc("/chart/posicoes", s.handlePositionsChart)

	// Operational endpoints.
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/metrics", s.handleMetrics)

	staticFS, err := fs.Sub(web.StaticFS, "static")
	if err != nil {
		s.logger.Warn("Static assets unavailable", log.FieldError, err.Error())
		return
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
	mux.Handle("/static/", security.StaticAssetMiddleware(staticCacheMaxAge)(static))
}

// screen logs suspicious requests and meters form submissions. Read-only
// traffic passes unmetered; the write path is the only one worth a budget.
func (s *Server) screen(next http.Handler) http.Handler {
	limited := s.rateLimiter.Middleware(s.detector.ExtractClientIP, nil)(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			s.logger.WarnContext(r.Context(), "Suspicious request detected",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RegisterCaches registers the server's caches with the cleanup manager.
// The dataset cache belongs to the dataset service and is registered there.
func (s *Server) RegisterCaches(m *cache.Manager) {
	m.Register(s.chartCache)
}

// render executes a named template. Failures are logged; by then part of
// the response may already be out, so no status rewrite is attempted.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template render failed",
			"template", name,
			log.FieldError, err.Error())
	}
}

// Shutdown stops the rate limiter and drains in-flight requests. Safe to
// call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down",
			log.FieldOperation, log.OpShutdown)
		s.rateLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
