package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (turn event stream)
	mux.HandleFunc("/ws/turns", s.app.WSHandler.HandleWebSocket)

	// API routes - Question answering
	mux.HandleFunc("/api/ask", s.app.AskHandler.AskHandler)

	// API routes - Retrieval
	mux.HandleFunc("/api/search", s.app.SearchHandler.SearchHandler)

	// API routes - Documents
	mux.HandleFunc("/api/documents", s.app.DocumentHandler.DocumentsHandler)
	mux.HandleFunc("/api/documents/", s.app.DocumentHandler.DocumentHandler) // GET/DELETE /{id}
	mux.HandleFunc("/api/stats", s.app.DocumentHandler.StatsHandler)

	// API routes - Scheduler
	mux.HandleFunc("/api/scheduler/reindex", s.app.SchedulerHandler.TriggerReindexHandler)
	mux.HandleFunc("/api/scheduler/jobs", s.app.SchedulerHandler.JobsHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})

	return mux
}
