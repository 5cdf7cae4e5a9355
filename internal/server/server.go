// Package server exposes the scrape pipeline as a small REST service:
// scrape-on-demand, health, and run ledger lookup. The handlers are
// synchronous; a scrape request holds the connection until the site run
// finishes or the request-scoped timeout fires.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/pipeline"
	"github.com/beanatlas/coffee-cli/internal/store"
)

// Scraper runs the pipeline for one site. Satisfied by pipeline.Pipeline.
type Scraper interface {
	ScrapeWithOptions(ctx context.Context, site model.Site, opts pipeline.Options) (*model.ScrapeResult, error)
}

// Options configures the REST server.
type Options struct {
	Port int
	// ScrapeTimeout bounds one POST /api/scrape request. Defaults to 5m,
	// matching the pipeline's per-site budget.
	ScrapeTimeout time.Duration
	// AllowedOrigins for CORS. Defaults to "*".
	AllowedOrigins []string
}

// Server wires the pipeline and the run ledger into a chi router.
type Server struct {
	scraper Scraper
	store   store.Store
	opts    Options
	srv     *http.Server
}

// New creates a Server. The listener is not opened until Start.
func New(scraper Scraper, st store.Store, opts Options) *Server {
	if opts.ScrapeTimeout == 0 {
		opts.ScrapeTimeout = 5 * time.Minute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{scraper: scraper, store: st, opts: opts}
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: s.Handler(),
	}
	return s
}

// Handler builds the router. Exposed so tests can drive the API through
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/scrape", s.handleScrape)
		r.Get("/runs/{runID}", s.handleGetRun)
	})

	return r
}

// Start listens until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	zap.L().Info("server: listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// Shutdown drains in-flight requests and closes the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	zap.L().Info("server: shutting down")
	return s.srv.Shutdown(ctx)
}
