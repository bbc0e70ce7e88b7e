package server

// Route path constants
const (
	RouteHealth = "/"

	// OAuth handshake with Strava
	RouteOAuthStart    = "/oauth/start"
	RouteOAuthCallback = "/oauth/callback"

	// API Routes
	RouteActivities = "/activities"

	// Scheduler trigger for the bulk refresh
	RouteTasksRefresh = "/tasks/refresh"

	RouteMetrics = "/metrics"
)

const connectedTemplate = "connected.html"
