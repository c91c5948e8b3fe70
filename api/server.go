package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/rpupo63/metadata-catalog/config"
	"github.com/rpupo63/metadata-catalog/database"
	"github.com/rpupo63/metadata-catalog/services"
)

type Server struct {
	*http.Server
	startupTime time.Time
}

func NewServer(c map[string]string, db *database.Database, opts ...func(*router)) Server {
	port := config.GetString(c, "PORT", "8080")
	address := fmt.Sprintf("0.0.0.0:%s", port) // Bind to 0.0.0.0 for external access

	startupTime := time.Now()

	opts = append([]func(*router){withConfig(c), withStartupTime(startupTime)}, opts...)
	router := newRouter(db, opts...)

	readTimeout := time.Duration(config.GetInt(c, "READ_TIMEOUT_SECONDS", 180)) * time.Second
	writeTimeout := time.Duration(config.GetInt(c, "WRITE_TIMEOUT_SECONDS", 180)) * time.Second
	idleTimeout := time.Duration(config.GetInt(c, "IDLE_TIMEOUT_SECONDS", 180)) * time.Second

	server := &http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	return Server{server, startupTime}
}

type router struct {
	config      map[string]string
	startupTime time.Time
	ingestor    *services.Ingestor
	gatherer    prometheus.Gatherer
}

func withConfig(c map[string]string) func(*router) {
	return func(r *router) {
		r.config = c
	}
}

func withStartupTime(startupTime time.Time) func(*router) {
	return func(r *router) {
		r.startupTime = startupTime
	}
}

// WithIngestor enables the connector endpoints.
func WithIngestor(ingestor *services.Ingestor) func(*router) {
	return func(r *router) {
		r.ingestor = ingestor
	}
}

// WithGatherer serves the metrics of gatherer on /metrics instead of the default registry.
func WithGatherer(gatherer prometheus.Gatherer) func(*router) {
	return func(r *router) {
		r.gatherer = gatherer
	}
}

func newRouter(db *database.Database, opts ...func(*router)) *chi.Mux {
	router := router{
		startupTime: time.Now(),
		gatherer:    prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(&router)
	}

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.RequestID)
	chiRouter.Use(LogInternalServerErrors)

	defaultLimit := config.GetInt(router.config, "DEFAULT_PAGE_LIMIT", 10)
	handlers := initializeHandlers(db, router.ingestor, defaultLimit, router.startupTime)

	authMiddleware := newAuthMiddleware(
		config.GetString(router.config, "JWT_SECRET", ""),
		config.GetString(router.config, "WRITE_ROLE", "catalog_editor"),
	)

	acceptedOrigins := config.GetList(router.config, "ACCEPTED_ORIGINS")
	if len(acceptedOrigins) > 0 {
		chiRouter.Use(cors.Handler(cors.Options{
			AllowedOrigins:   acceptedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "Authorization"},
			ExposedHeaders:   []string{TotalCountHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	setupRoutes(chiRouter, handlers, authMiddleware, router.gatherer)

	return chiRouter
}

func (s Server) Start(errChannel chan<- error) {
	log.Info().Msgf("Server started on: %s", s.Addr)
	errChannel <- s.ListenAndServe()
}

func (s Server) ShutdownGracefully(timeout time.Duration) {
	log.Info().Msg("Gracefully shutting down...")

	gracefullCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(gracefullCtx); err != nil {
		log.Error().Msgf("Error shutting down the server: %v", err)
	} else {
		log.Info().Msg("HttpServer gracefully shut down")
	}
}
