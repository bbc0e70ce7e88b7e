package server

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.router.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		s.LoggingMiddleware,
		chimiddleware.Recoverer,
		s.FrameSecurityMiddleware,
		s.CorsMiddleware(),
	)
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "Not found.", http.StatusNotFound)
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, "Method not allowed.", http.StatusMethodNotAllowed)
	})

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())

	// Browser-facing routes share one per-visitor limiter
	visitor := s.VisitorMiddleware()
	s.RegisterRouteHandler("GET "+RouteOAuthStart, ChainMiddleware(s.OAuthStartHandler(), visitor...))
	s.RegisterRouteHandler("GET "+RouteOAuthCallback, ChainMiddleware(s.OAuthCallbackHandler(), visitor...))
	s.RegisterRouteHandler("GET "+RouteActivities, ChainMiddleware(s.ActivitiesHandler(), visitor...))

	s.RegisterRouteHandler("GET "+RouteTasksRefresh, ChainMiddleware(s.TasksRefreshHandler(), s.RequireTaskToken))
	s.RegisterRouteHandler("POST "+RouteTasksRefresh, ChainMiddleware(s.TasksRefreshHandler(), s.RequireTaskToken))

	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
}
