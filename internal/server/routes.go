// ABOUTME: Route table for the notebox HTTP API
// ABOUTME: Binds method patterns to handlers and applies the auth gate

package server

import (
	"context"
	"net/http"
	"time"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	authed := func(h http.HandlerFunc) http.Handler {
		return s.gate.Middleware(h)
	}

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)

	mux.Handle("POST /notes", authed(s.handleCreateNote))
	mux.Handle("GET /notes", authed(s.handleListNotes))
	mux.Handle("GET /notes/{id}", authed(s.handleGetNote))
	mux.Handle("PUT /notes/{id}", authed(s.handleUpdateNote))
	mux.Handle("DELETE /notes/{id}", authed(s.handleDeleteNote))
	mux.Handle("GET /notes/search/{term}", authed(s.handleSearchNotes))
	mux.Handle("POST /notes/{id}/images", authed(s.handleAddImage))

	mux.Handle("DELETE /image/{id}", authed(s.handleDeleteImage))
	mux.HandleFunc("GET /image/{name}", s.handleGetImage)

	mux.HandleFunc("GET /pdf/{id}/export/pdf", s.handleExportPDF)

	mux.HandleFunc("GET /health", s.handleHealth)
}

// handleHealth reports 200 when the database answers a ping.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
