package httpapi

import (
	"net/http"
)

// NewRouter wires the task, agent, notification, gateway, and health
// endpoints. mw (auth) wraps every /api route; wsHandler serves the board
// event stream; metricsHandler, when given, is mounted unauthenticated at
// /metrics.
func NewRouter(svc *Service, wsHandler http.Handler, metricsHandler http.Handler, mw func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.Handler {
		handler := http.Handler(h)
		if mw != nil {
			handler = mw(handler)
		}
		return handler
	}

	mux.Handle("/api/tasks", wrap(svc.handleTasks))
	mux.Handle("/api/tasks/", wrap(svc.handleTaskByID))
	mux.Handle("/api/agents", wrap(svc.handleAgents))
	mux.Handle("/api/agents/heartbeat", wrap(svc.handleHeartbeat))
	mux.Handle("/api/messages", wrap(svc.handleMessages))
	mux.Handle("/api/notify", wrap(svc.handleNotify))
	mux.Handle("/api/activity", wrap(svc.handleActivity))
	mux.Handle("/api/gateway/config", wrap(svc.handleGatewayConfig))
	mux.Handle("/api/gateway/agents", wrap(svc.handleGatewayAgents))
	mux.Handle("/api/health", http.HandlerFunc(svc.handleHealth))

	if wsHandler != nil {
		if mw != nil {
			mux.Handle("/ws/board", mw(wsHandler))
		} else {
			mux.Handle("/ws/board", wsHandler)
		}
	}
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	return mux
}
