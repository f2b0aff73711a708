// ABOUTME: HTTP handlers for registration, login, and logout
// ABOUTME: Decodes JSON credentials and delegates to auth.Accounts

package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/notebox/internal/apperr"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return apperr.E(apperr.KindValidation, "request body too large", err)
		}
		if errors.Is(err, io.EOF) {
			return apperr.E(apperr.KindValidation, "request body is empty", err)
		}
		return apperr.E(apperr.KindValidation, "invalid JSON body", err)
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if _, err := s.accounts.Register(r.Context(), req.Username, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "user registered"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.accounts.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, apperr.ErrAuth) {
		writeJSON(w, http.StatusUnauthorized, loginResponse{Success: false, Message: apperr.Message(err)})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Success: true, Message: "login successful", Token: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.Logout(r.Context(), r.Header.Get("Authorization")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out"})
}
