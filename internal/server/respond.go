// ABOUTME: JSON response helpers, error mapping, and API data transfer objects
// ABOUTME: Converts store types to the wire shape with resolved image URLs

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/attachment"
	"github.com/2389/notebox/internal/auth"
	"github.com/2389/notebox/internal/store"
)

type imageRef struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

type noteDTO struct {
	ID        int64      `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Tags      []string   `json:"tags"`
	OwnerID   int64      `json:"ownerId"`
	Images    []imageRef `json:"images"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

type imageDTO struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	NoteID    int64     `json:"noteId"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

func toNoteDTO(n *store.Note, att *attachment.Store) noteDTO {
	images := make([]imageRef, 0, len(n.Images))
	for _, img := range n.Images {
		images = append(images, imageRef{
			ID:       img.ID,
			Filename: img.StoredFilename,
			URL:      att.ResolveURL(img.StoredFilename),
		})
	}
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return noteDTO{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Tags:      tags,
		OwnerID:   n.OwnerID,
		Images:    images,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func toNoteDTOs(ns []*store.Note, att *attachment.Store) []noteDTO {
	out := make([]noteDTO, 0, len(ns))
	for _, n := range ns {
		out = append(out, toNoteDTO(n, att))
	}
	return out
}

func toImageDTO(img *store.Image, att *attachment.Store) imageDTO {
	return imageDTO{
		ID:        img.ID,
		Filename:  img.StoredFilename,
		URL:       att.ResolveURL(img.StoredFilename),
		NoteID:    img.NoteID,
		CreatedAt: img.CreatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps err to a status and safe message. Server-side failures
// are logged with their cause; the cause never reaches the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var rej *auth.RejectionError
	if errors.As(err, &rej) {
		s.logger.Info("request rejected", "reason", rej.Reason.String(), "path", r.URL.Path, "request_id", requestIDFrom(r.Context()))
		writeJSONError(w, rej.Status(), rej.Message())
		return
	}

	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"status", status,
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestIDFrom(r.Context()),
		)
	}
	writeJSONError(w, status, apperr.Message(err))
}
