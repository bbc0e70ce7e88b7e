package server

import (
	"context"
	"net/http"
)

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"message": "Strava proxy ready.",
		})
	}
}

// ActivitiesHandler serves the caller's recent activities as JSON.
func (s *Server) ActivitiesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")

		sessionID, _ := s.identity.SessionID(r)
		payload, err := s.broker.FetchActivities(r.Context(), sessionID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

// TasksRefreshHandler runs one bulk refresh. Per-session failures are in the
// logs and metrics; only a failure to enumerate the store fails the request.
func (s *Server) TasksRefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// A scheduler hanging up early must not abort the run half way.
		report, err := s.broker.RefreshAll(context.WithoutCancel(r.Context()))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.logger.Info().
			Str("run_id", report.RunID).
			Int("total", report.Total).
			Int("refreshed", report.Refreshed).
			Int("skipped", report.Skipped).
			Int("failed", report.Failed).
			Msg("refresh task finished")
		w.WriteHeader(http.StatusNoContent)
	}
}
