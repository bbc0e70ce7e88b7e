package server

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-strava-broker/broker"
	"github.com/jrsteele09/go-strava-broker/internal/config"
	"github.com/jrsteele09/go-strava-broker/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	router   chi.Router
	routes   []string
	config   config.Config
	broker   *broker.TokenBroker
	identity *sessions.Identity
	logger   zerolog.Logger

	connectedPage *template.Template
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func New(config config.Config, tokenBroker *broker.TokenBroker, identity *sessions.Identity, opts ...Option) (*Server, error) {
	if tokenBroker == nil || identity == nil {
		return nil, fmt.Errorf("[Server New] broker and identity are required")
	}

	connectedPage, err := ParseTemplate(connectedTemplate)
	if err != nil {
		return nil, fmt.Errorf("[Server New] failed to parse %s: %w", connectedTemplate, err)
	}

	s := &Server{
		env:           config.GetEnv(),
		router:        chi.NewRouter(),
		config:        config,
		broker:        tokenBroker,
		identity:      identity,
		logger:        log.Logger,
		connectedPage: connectedPage,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// RegisterRouteHandler registers handler for a "METHOD /path" pattern.
func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	method, path := splitPattern(pattern)
	s.routes = append(s.routes, pattern)
	s.router.Method(method, path, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.RegisterRouteHandler(pattern, http.HandlerFunc(handler))
}

// Routes lists the registered patterns in registration order.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func splitPattern(pattern string) (method, path string) {
	parts := strings.SplitN(pattern, " ", 2)
	if len(parts) == 1 {
		return http.MethodGet, parts[0]
	}
	return parts[0], parts[1]
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		method, path := splitPattern(route)
		s.logger.Info().Msgf("[%-19s] %s", colourMethod(method), path)
	}
}
