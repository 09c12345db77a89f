// Package server provides the HTTP API for the research service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/onepager/internal/config"
	"github.com/aristath/onepager/internal/database"
	"github.com/aristath/onepager/internal/domain"
	"github.com/aristath/onepager/internal/events"
	"github.com/aristath/onepager/internal/research/annotators"
	"github.com/aristath/onepager/internal/research/memo"
	"github.com/aristath/onepager/internal/research/screen"
)

// Config holds server configuration and the collaborators handlers reach.
type Config struct {
	Port    int
	Log     zerolog.Logger
	Config  *config.Config
	DevMode bool

	ResearchDB *database.DB
	CacheDB    *database.DB

	Market     domain.MarketDataProvider
	Risk       memo.RiskAnalyzer
	Tech       annotators.Annotator
	Financials annotators.Annotator
	Memos      *memo.Service
	Screens    *screen.Service
	Bus        *events.Bus
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config

	researchDB *database.DB
	cacheDB    *database.DB

	market     domain.MarketDataProvider
	risk       memo.RiskAnalyzer
	tech       annotators.Annotator
	financials annotators.Annotator
	memos      *memo.Service
	screens    *screen.Service
	bus        *events.Bus

	started time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		log:        cfg.Log.With().Str("component", "server").Logger(),
		cfg:        cfg.Config,
		researchDB: cfg.ResearchDB,
		cacheDB:    cfg.CacheDB,
		market:     cfg.Market,
		risk:       cfg.Risk,
		tech:       cfg.Tech,
		financials: cfg.Financials,
		memos:      cfg.Memos,
		screens:    cfg.Screens,
		bus:        cfg.Bus,
		started:    time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		// The event stream is long-lived, so the request timeout
		// covers the JSON endpoints only.
		r.Get("/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Get("/health", s.handleHealth)

			r.Route("/system", func(r chi.Router) {
				r.Get("/status", s.handleSystemStatus)
			})

			r.Route("/stocks", func(r chi.Router) {
				r.Get("/search", s.handleStockSearch)
				r.Route("/{symbol}", func(r chi.Router) {
					r.Get("/", s.handleStock)
					r.Get("/price", s.handleStockPrice)
					r.Get("/performance", s.handleStockPerformance)
					r.Get("/facts", s.handleStockFacts)
					r.Get("/analysis/{section}", s.handleAnalysisSection)
				})
			})

			r.Route("/memos", func(r chi.Router) {
				r.Get("/", s.handleListMemos)
				r.Get("/{id}", s.handleGetMemo)
				r.Post("/{symbol}", s.handleCreateMemo)
			})

			r.Route("/screens", func(r chi.Router) {
				r.Post("/", s.handleRunScreen)
				r.Get("/latest", s.handleLatestScreen)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
