package server

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
)

const (
	contentTypeHTML = "text/html; charset=utf-8"
	contentTypeJSON = "application/json; charset=utf-8"
)

// OAuthStartHandler binds a session to the visitor and redirects them to
// Strava's consent page with a fresh state.
func (s *Server) OAuthStartHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, sessionCookie, err := s.identity.EnsureSession(r)
		if err != nil {
			s.writeError(w, r, errors.Wrapf(err, "issuing session"))
			return
		}

		authorization, err := s.broker.StartAuthorization(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		stateCookie, err := s.identity.IssueStateCookie(authorization.State)
		if err != nil {
			s.writeError(w, r, errors.Wrapf(err, "issuing state cookie"))
			return
		}

		http.SetCookie(w, sessionCookie)
		http.SetCookie(w, stateCookie)
		http.Redirect(w, r, authorization.URL, http.StatusFound)
	}
}

// writeError logs err in full and answers with its public form only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	event := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = s.logger.Error()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeJSONError(w, errors.PublicMessage(err), status)
}

func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
