// ABOUTME: Note aggregate service: create, update, delete, read, and search
// ABOUTME: Keeps note rows, tags, image rows, and image files consistent per call

package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/attachment"
	"github.com/2389/notebox/internal/auth"
	"github.com/2389/notebox/internal/store"
)

// MaxTitleLength bounds note titles in bytes.
const MaxTitleLength = 255

// Store is the persistence the service needs. *store.SQLStore satisfies it.
type Store interface {
	InTx(ctx context.Context, fn func(q *store.Queries) error) error
	GetNote(ctx context.Context, id int64) (*store.Note, error)
	ListNotesByOwner(ctx context.Context, ownerID int64) ([]*store.Note, error)
	SearchNotes(ctx context.Context, ownerID int64, term string) ([]*store.Note, error)
}

// NewNote is the input to Create.
type NewNote struct {
	Title   string
	Content string
	TagsCSV string
	Files   []attachment.File
}

// Patch is the input to Update. Nil fields are left unchanged; set fields
// replace the whole value.
type Patch struct {
	Title          *string
	Content        *string
	Tags           *[]string
	ImagesToDelete []int64
	NewFiles       []attachment.File
}

// Service implements the note operations.
type Service struct {
	store       Store
	attachments *attachment.Store
	logger      *slog.Logger
}

// NewService creates a note service.
func NewService(st Store, attachments *attachment.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       st,
		attachments: attachments,
		logger:      logger.With("component", "notes"),
	}
}

// Attachments returns the attachment store used for image files.
func (s *Service) Attachments() *attachment.Store {
	return s.attachments
}

// ParseTags splits a comma separated list, trimming each tag and dropping
// empty ones. Order is preserved.
func ParseTags(csv string) []string {
	tags := []string{}
	for _, part := range strings.Split(csv, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func cleanTags(in []string) []string {
	out := make([]string, 0, len(in))
	for _, tag := range in {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return apperr.E(apperr.KindValidation, "title is required", nil)
	}
	if len(title) > MaxTitleLength {
		return apperr.E(apperr.KindValidation, fmt.Sprintf("title must be at most %d bytes", MaxTitleLength), nil)
	}
	return nil
}

// Create stores a note owned by identity together with its uploaded images.
// Either everything is stored or nothing is: on failure the transaction
// rolls back and files already written are removed.
func (s *Service) Create(ctx context.Context, identity *auth.Identity, in NewNote) (*store.Note, error) {
	if identity == nil {
		return nil, apperr.E(apperr.KindAuth, "unauthorized", nil)
	}
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}

	var (
		created *store.Note
		written []string
	)
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		note := &store.Note{
			OwnerID: identity.UserID,
			Title:   in.Title,
			Content: in.Content,
			Tags:    ParseTags(in.TagsCSV),
		}
		if err := q.CreateNote(ctx, note); err != nil {
			return err
		}

		for _, f := range in.Files {
			img, err := s.attachments.Upload(ctx, q, note.ID, f.Data, f.Name)
			if err != nil {
				return err
			}
			written = append(written, img.StoredFilename)
		}

		loaded, err := q.GetNote(ctx, note.ID)
		if err != nil {
			return err
		}
		created = loaded
		return nil
	})
	if err != nil {
		s.attachments.Cleanup(written...)
		return nil, err
	}

	s.logger.Info("note created", "note_id", created.ID, "owner_id", identity.UserID, "images", len(created.Images))
	return created, nil
}

// Update applies patch to a note owned by identity. Image deletions must name
// images of this note. Files of deleted images are removed after commit;
// files uploaded by a failed update are removed on rollback.
func (s *Service) Update(ctx context.Context, identity *auth.Identity, noteID int64, patch Patch) (*store.Note, error) {
	if patch.Title != nil {
		if err := validateTitle(*patch.Title); err != nil {
			return nil, err
		}
	}

	var (
		updated *store.Note
		written []string
		removed []string
	)
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		note, err := AuthorizeMutation(ctx, q, noteID, identity)
		if err != nil {
			return err
		}

		if patch.Title != nil {
			note.Title = *patch.Title
		}
		if patch.Content != nil {
			note.Content = *patch.Content
		}
		if patch.Tags != nil {
			note.Tags = cleanTags(*patch.Tags)
		}
		if err := q.UpdateNote(ctx, note); err != nil {
			return err
		}

		// Repeated ids name the same image once
		toDelete := slices.Clone(patch.ImagesToDelete)
		slices.Sort(toDelete)
		for _, imageID := range slices.Compact(toDelete) {
			if !note.HasImage(imageID) {
				return apperr.E(apperr.KindValidation, fmt.Sprintf("image %d does not belong to note %d", imageID, noteID), nil)
			}
			img, err := s.attachments.Remove(ctx, q, imageID)
			if err != nil {
				return err
			}
			removed = append(removed, img.StoredFilename)
		}

		for _, f := range patch.NewFiles {
			img, err := s.attachments.Upload(ctx, q, noteID, f.Data, f.Name)
			if err != nil {
				return err
			}
			written = append(written, img.StoredFilename)
		}

		loaded, err := q.GetNote(ctx, noteID)
		if err != nil {
			return err
		}
		updated = loaded
		return nil
	})
	if err != nil {
		s.attachments.Cleanup(written...)
		return nil, err
	}

	s.attachments.Cleanup(removed...)
	s.logger.Info("note updated", "note_id", noteID, "removed_images", len(removed), "added_images", len(written))
	return updated, nil
}

// Delete removes a note owned by identity with all its images.
func (s *Service) Delete(ctx context.Context, identity *auth.Identity, noteID int64) error {
	var files []string
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		note, err := AuthorizeMutation(ctx, q, noteID, identity)
		if err != nil {
			return err
		}
		for _, img := range note.Images {
			files = append(files, img.StoredFilename)
		}
		if err := q.DeleteNote(ctx, noteID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperr.E(apperr.KindNotFound, "note not found", err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.attachments.Cleanup(files...)
	s.logger.Info("note deleted", "note_id", noteID, "images", len(files))
	return nil
}

// Get returns any note by id. Reading is not restricted to the owner.
func (s *Service) Get(ctx context.Context, noteID int64) (*store.Note, error) {
	note, err := s.store.GetNote(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.E(apperr.KindNotFound, "note not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading note: %w", err)
	}
	return note, nil
}

// List returns the caller's notes, newest first.
func (s *Service) List(ctx context.Context, identity *auth.Identity) ([]*store.Note, error) {
	if identity == nil {
		return nil, apperr.E(apperr.KindAuth, "unauthorized", nil)
	}
	notes, err := s.store.ListNotesByOwner(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	return notes, nil
}

// Search returns the caller's notes whose title or content contains term,
// ignoring ASCII case.
func (s *Service) Search(ctx context.Context, identity *auth.Identity, term string) ([]*store.Note, error) {
	if identity == nil {
		return nil, apperr.E(apperr.KindAuth, "unauthorized", nil)
	}
	if strings.TrimSpace(term) == "" {
		return nil, apperr.E(apperr.KindValidation, "search term is required", nil)
	}
	notes, err := s.store.SearchNotes(ctx, identity.UserID, term)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	return notes, nil
}

// AddImage uploads one image to a note owned by identity.
func (s *Service) AddImage(ctx context.Context, identity *auth.Identity, noteID int64, file attachment.File) (*store.Image, error) {
	var img *store.Image
	err := s.store.InTx(ctx, func(q *store.Queries) error {
		if _, err := AuthorizeMutation(ctx, q, noteID, identity); err != nil {
			return err
		}
		uploaded, err := s.attachments.Upload(ctx, q, noteID, file.Data, file.Name)
		if err != nil {
			return err
		}
		img = uploaded
		return nil
	})
	if err != nil {
		// Upload succeeded but the commit did not
		if img != nil {
			s.attachments.Cleanup(img.StoredFilename)
		}
		return nil, err
	}

	s.logger.Info("image added", "note_id", noteID, "image_id", img.ID)
	return img, nil
}

// DeleteImage removes an image whose parent note is owned by identity.
func (s *Service) DeleteImage(ctx context.Context, identity *auth.Identity, imageID int64) error {
	check := func(ctx context.Context, q *store.Queries, img *store.Image) error {
		_, _, err := AuthorizeImageMutation(ctx, q, img.ID, identity)
		return err
	}
	img, err := s.attachments.Delete(ctx, s.store, imageID, check)
	if err != nil {
		return err
	}

	s.logger.Info("image deleted", "note_id", img.NoteID, "image_id", imageID)
	return nil
}
