// ABOUTME: HTTP handlers for notes, images, and PDF export
// ABOUTME: Parses JSON and multipart bodies into notes.Service calls

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/attachment"
	"github.com/2389/notebox/internal/auth"
	"github.com/2389/notebox/internal/export"
	"github.com/2389/notebox/internal/notes"
)

// pathID parses the {id} path value.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.E(apperr.KindValidation, fmt.Sprintf("invalid id %q", raw), err)
	}
	return id, nil
}

// parseMultipart bounds the body by storage.max_upload_bytes and parses it.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	if limit := s.config.Storage.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	err := r.ParseMultipartForm(multipartMemory)
	if err == nil {
		return nil
	}

	var tooBig *http.MaxBytesError
	switch {
	case errors.As(err, &tooBig):
		return apperr.E(apperr.KindValidation, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit), err)
	case errors.Is(err, http.ErrNotMultipart):
		return apperr.E(apperr.KindValidation, "expected multipart/form-data", err)
	default:
		return apperr.E(apperr.KindValidation, "malformed multipart body", err)
	}
}

// formFiles reads every file uploaded under any of fields. Parts with no
// filename and no content, as sent for an untouched file input, are skipped.
func formFiles(form *multipart.Form, fields ...string) ([]attachment.File, error) {
	var files []attachment.File
	for _, field := range fields {
		for _, fh := range form.File[field] {
			if fh.Filename == "" && fh.Size == 0 {
				continue
			}
			data, err := readFormFile(fh)
			if err != nil {
				return nil, err
			}
			files = append(files, attachment.File{Name: fh.Filename, Data: data})
		}
	}
	return files, nil
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperr.E(apperr.KindValidation, "reading uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperr.E(apperr.KindValidation, "reading uploaded file", err)
	}
	return data, nil
}

// formValue returns the first value of the first present field.
func formValue(form *multipart.Form, fields ...string) (string, bool) {
	for _, field := range fields {
		if vs, ok := form.Value[field]; ok && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files, err := formFiles(r.MultipartForm, "images", "images[]")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	title, _ := formValue(r.MultipartForm, "title")
	content, _ := formValue(r.MultipartForm, "description", "content")
	tags, _ := formValue(r.MultipartForm, "tags")

	note, err := s.notes.Create(r.Context(), auth.MustFromContext(r.Context()), notes.NewNote{
		Title:   title,
		Content: content,
		TagsCSV: tags,
		Files:   files,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteDTO(note, s.attachments))
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	list, err := s.notes.List(r.Context(), auth.MustFromContext(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(list) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTOs(list, s.attachments))
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	note, err := s.notes.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(note, s.attachments))
}

// updateRequest is the JSON shape of a note update, sent either as the
// whole body or as the "note" part of a multipart body.
type updateRequest struct {
	Title          *string   `json:"title"`
	Content        *string   `json:"content"`
	Description    *string   `json:"description"`
	Tags           *[]string `json:"tags"`
	ImagesToDelete []int64   `json:"imagesToDelete"`
}

func (u updateRequest) patch() notes.Patch {
	content := u.Content
	if content == nil {
		content = u.Description
	}
	return notes.Patch{
		Title:          u.Title,
		Content:        content,
		Tags:           u.Tags,
		ImagesToDelete: u.ImagesToDelete,
	}
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var patch notes.Patch
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		patch, err = s.multipartPatch(w, r)
	} else {
		var req updateRequest
		err = decodeJSON(w, r, &req)
		patch = req.patch()
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	note, err := s.notes.Update(r.Context(), auth.MustFromContext(r.Context()), id, patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTO(note, s.attachments))
}

// multipartPatch reads an update from a multipart body: either a JSON
// "note" part or individual form fields, plus files under "newFiles" or
// "images".
func (s *Server) multipartPatch(w http.ResponseWriter, r *http.Request) (notes.Patch, error) {
	if err := s.parseMultipart(w, r); err != nil {
		return notes.Patch{}, err
	}
	defer r.MultipartForm.RemoveAll()
	form := r.MultipartForm

	var patch notes.Patch
	if raw, ok := formValue(form, "note"); ok {
		var req updateRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			return notes.Patch{}, apperr.E(apperr.KindValidation, "invalid JSON in note part", err)
		}
		patch = req.patch()
	} else {
		if v, ok := formValue(form, "title"); ok {
			patch.Title = &v
		}
		if v, ok := formValue(form, "content", "description"); ok {
			patch.Content = &v
		}
		if v, ok := formValue(form, "tags"); ok {
			tags := notes.ParseTags(v)
			patch.Tags = &tags
		}
		ids, err := parseIDList(slices.Concat(form.Value["imagesToDelete"], form.Value["imagesToDelete[]"]))
		if err != nil {
			return notes.Patch{}, err
		}
		patch.ImagesToDelete = ids
	}

	files, err := formFiles(form, "newFiles", "newFiles[]", "images", "images[]")
	if err != nil {
		return notes.Patch{}, err
	}
	patch.NewFiles = files
	return patch, nil
}

// parseIDList accepts repeated values, each of which may itself be a comma
// separated list.
func parseIDList(values []string) ([]int64, error) {
	var ids []int64
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, apperr.E(apperr.KindValidation, fmt.Sprintf("invalid image id %q", part), err)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.notes.Delete(r.Context(), auth.MustFromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "note deleted"})
}

func (s *Server) handleSearchNotes(w http.ResponseWriter, r *http.Request) {
	found, err := s.notes.Search(r.Context(), auth.MustFromContext(r.Context()), r.PathValue("term"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteDTOs(found, s.attachments))
}

func (s *Server) handleAddImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.parseMultipart(w, r); err != nil {
		s.writeError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["image"]
	if len(headers) == 0 {
		s.writeError(w, r, apperr.E(apperr.KindValidation, "image file is required", nil))
		return
	}
	data, err := readFormFile(headers[0])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	img, err := s.notes.AddImage(r.Context(), auth.MustFromContext(r.Context()), id, attachment.File{
		Name: headers[0].Filename,
		Data: data,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toImageDTO(img, s.attachments))
}

func (s *Server) handleDeleteImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.notes.DeleteImage(r.Context(), auth.MustFromContext(r.Context()), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "image deleted"})
}

// handleGetImage serves a stored image file. No token is required so the
// URLs in note responses work from plain <img> tags.
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, err := s.attachments.Open(name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, apperr.E(apperr.KindStorage, "stat attachment", err))
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	pdf, err := s.exporter.Export(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", export.Filename(id)))
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
