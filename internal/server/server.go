// Package server provides the HTTP server and routing for the simulation API.
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

	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/config"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/events"
	"github.com/plturrell/scb-sapphire-finsight-sub010/internal/modules/simulation"
	simulationhandlers "github.com/plturrell/scb-sapphire-finsight-sub010/internal/modules/simulation/handlers"
)

// Config holds server configuration
type Config struct {
	Log    zerolog.Logger
	Config *config.Config
}

// Server represents the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	log            zerolog.Logger
	cfg            *config.Config
	metrics        *Metrics
	limiter        *RateLimiter
	stopSweeper    func()
	systemHandlers *SystemHandlers
	eventsStream   *EventsStreamHandler
	simulation     *simulationhandlers.Handler
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	metrics := NewMetrics()
	limiter := NewRateLimiter(cfg.Config.SimulationRateLimit, cfg.Config.SimulationRateBurst)
	limiter.onReject = metrics.RateLimited.Inc

	broadcaster := events.NewBroadcaster(cfg.Log)
	service := simulation.NewService(cfg.Config.SimulationSettings(), metrics, cfg.Log)
	service.SetPublisher(broadcaster)

	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Config,
		metrics:        metrics,
		limiter:        limiter,
		systemHandlers: NewSystemHandlers(cfg.Log),
		eventsStream:   NewEventsStreamHandler(broadcaster, cfg.Log),
		simulation:     simulationhandlers.NewHandler(service, cfg.Log),
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.Config.DevMode)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: simulationhandlers.SimulationTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Request metrics
	s.router.Use(s.metrics.Middleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes. Compression is applied per group so the
// event stream is written straight to the connection.
func (s *Server) setupRoutes(devMode bool) {
	compress := func(r chi.Router) {
		if !devMode {
			r.Use(middleware.Compress(5))
		}
	}

	// Short requests share one timeout; simulations set their own
	s.router.Group(func(r chi.Router) {
		compress(r)
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/health", s.handleHealth)
		r.Get("/api/system/status", s.systemHandlers.HandleSystemStatus)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	})

	// Streams stay open until the client leaves
	s.router.Method(http.MethodGet, "/api/events/stream", s.eventsStream)

	s.router.Group(func(r chi.Router) {
		compress(r)
		r.Use(s.limiter.Middleware)
		s.simulation.RegisterRoutes(r)
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	s.stopSweeper = s.limiter.StartSweeper(LimiterSweepInterval)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
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
