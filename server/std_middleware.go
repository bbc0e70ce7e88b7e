package server

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jrsteele09/go-strava-broker/internal/metrics"
)

const taskTokenHeader = "X-Task-Token"

func ChainMiddleware(handler http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	chainedHandler := handler
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// VisitorMiddleware is applied to every browser-facing route.
func (s *Server) VisitorMiddleware() []func(http.Handler) http.Handler {
	if !s.config.GetRateLimitEnabled() {
		return nil
	}
	return []func(http.Handler) http.Handler{
		httprate.Limit(
			s.config.GetRateLimitRequests(),
			s.config.GetRateLimitWindow(),
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeJSONError(w, "Too many requests.", http.StatusTooManyRequests)
			}),
		),
	}
}

// LoggingMiddleware writes one access log line per request and records its duration.
// Query strings are never logged: the callback carries the authorization code.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), duration)

		event := s.logger.Info()
		if status >= http.StatusInternalServerError {
			event = s.logger.Warn()
		}
		event = event.
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", duration)
		if s.env == "DEV" {
			event.Msgf("[%-19s] %s %s%d%s", colourMethod(r.Method), r.URL.Path, colourStatus(status), status, ResetColor)
			return
		}
		event.Msg("request")
	})
}

func (s *Server) FrameSecurityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Prevent embedding on other sites
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Content-Security-Policy", "frame-ancestors 'self'")
		next.ServeHTTP(w, r)
	})
}

// CorsMiddleware answers only for the configured origins. Credentials are
// allowed so the session cookie travels with cross-origin fetches.
func (s *Server) CorsMiddleware() func(http.Handler) http.Handler {
	origins := s.config.GetAllowedOrigins()
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return origins.IsAllowedOrigin(origin)
		},
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           86400,
	})
}

// RequireTaskToken guards the scheduler routes when a task token is configured.
func (s *Server) RequireTaskToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := s.config.GetTasksToken()
		if expected == "" {
			next.ServeHTTP(w, r)
			return
		}
		if subtle.ConstantTimeCompare([]byte(taskToken(r)), []byte(expected)) != 1 {
			writeJSONError(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func taskToken(r *http.Request) string {
	if token := r.Header.Get(taskTokenHeader); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > len("Bearer ") && strings.EqualFold(auth[:len("Bearer ")], "Bearer ") {
		return auth[len("Bearer "):]
	}
	return ""
}
