package server

import (
	"net/http"

	"github.com/jrsteele09/go-strava-broker/broker"
	"github.com/jrsteele09/go-strava-broker/internal/errors"
	"github.com/jrsteele09/go-strava-broker/internal/utils"
	"github.com/jrsteele09/go-strava-broker/stravamodel"
)

type connectedPageData struct {
	AppName string
	Athlete string
}

func (s *Server) OAuthCallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		sessionID, _ := s.identity.SessionID(r)
		cookieState, _ := s.identity.StateFromCookie(r)

		athlete, err := s.broker.CompleteAuthorization(r.Context(), broker.Callback{
			SessionID:     sessionID,
			Code:          query.Get("code"),
			State:         query.Get("state"),
			CookieState:   cookieState,
			ProviderError: query.Get("error"),
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		sessionCookie, err := s.identity.SessionCookie(sessionID)
		if err != nil {
			s.writeError(w, r, errors.Wrapf(err, "issuing session"))
			return
		}
		http.SetCookie(w, sessionCookie)
		http.SetCookie(w, s.identity.ClearStateCookie())

		w.Header().Set("Content-Type", contentTypeHTML)
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		data := connectedPageData{AppName: s.config.GetAppName(), Athlete: athleteName(athlete)}
		if err := s.connectedPage.Execute(w, data); err != nil {
			s.logger.Error().Err(err).Msg("rendering connected page")
		}
	}
}

func athleteName(a *stravamodel.Athlete) string {
	if a == nil {
		return ""
	}
	return utils.Coalesce(a.Firstname, a.Username)
}
