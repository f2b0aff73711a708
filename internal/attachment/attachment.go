// ABOUTME: Attachment storage keeping image files and image rows in step
// ABOUTME: Writes file then row on upload; removes row then file on delete

package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/store"
)

// maxNameAttempts bounds retries when a stored filename is already taken.
const maxNameAttempts = 4

// File is an uploaded file awaiting storage.
type File struct {
	Name string
	Data []byte
}

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(q *store.Queries) error) error
}

// Store writes and removes attachment files and their rows.
type Store struct {
	dir     string
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an attachment store rooted at dir. baseURL prefixes the URLs
// returned by ResolveURL.
func New(dir, baseURL string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With("component", "attachments"),
		now:     time.Now,
	}
}

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with '_'.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// storedName builds the on-disk name. attempt 0 is the plain
// "<millis>_<sanitized>"; later attempts add a random suffix before the
// extension.
func storedName(millis int64, sanitized string, attempt int) string {
	name := strconv.FormatInt(millis, 10) + "_" + sanitized
	if attempt == 0 {
		return name
	}
	ext := filepath.Ext(sanitized)
	stem := strings.TrimSuffix(sanitized, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return strconv.FormatInt(millis, 10) + "_" + stem + "-" + suffix + ext
}

// ValidateImage checks that data decodes as a supported image format.
func ValidateImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperr.E(apperr.KindValidation, "empty file", nil)
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", apperr.E(apperr.KindValidation, "file is not a supported image (png, jpeg, gif, webp, bmp)", err)
	}
	return format, nil
}

// Upload stores data for the note and records it. The note must exist in q.
// On any failure after the file is written the file is removed, so no row
// ever points at a missing file and no file is left for a failed upload.
// When q is a transaction that later rolls back, the caller must Cleanup
// the returned image's file.
func (s *Store) Upload(ctx context.Context, q *store.Queries, noteID int64, data []byte, originalName string) (*store.Image, error) {
	if _, err := q.GetNote(ctx, noteID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "note not found", err)
		}
		return nil, fmt.Errorf("resolving note: %w", err)
	}

	if _, err := ValidateImage(data); err != nil {
		return nil, err
	}

	name, err := s.writeFile(data, SanitizeFilename(originalName))
	if err != nil {
		return nil, err
	}

	// A request that timed out while writing must not record the file
	if err := ctx.Err(); err != nil {
		s.removeFile(name)
		return nil, err
	}

	img := &store.Image{
		NoteID:         noteID,
		StoredFilename: name,
		CreatedAt:      s.now().UTC(),
	}
	if err := q.CreateImage(ctx, img); err != nil {
		s.removeFile(name)
		if errors.Is(err, store.ErrDuplicateFilename) {
			s.logger.Error("image row already uses filename", "file", name)
			return nil, apperr.E(apperr.KindStorage, "recording image", err)
		}
		return nil, fmt.Errorf("recording image: %w", err)
	}

	s.logger.Debug("stored attachment", "note_id", noteID, "image_id", img.ID, "file", name)
	return img, nil
}

// writeFile creates the attachment directory if needed and writes data
// under a fresh name, never replacing an existing file.
func (s *Store) writeFile(data []byte, sanitized string) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("creating attachment directory", "dir", s.dir, "error", err)
		return "", apperr.E(apperr.KindStorage, "creating attachment directory", err)
	}

	millis := s.now().UnixMilli()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := storedName(millis, sanitized, attempt)
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			s.logger.Error("creating attachment file", "path", path, "error", err)
			return "", apperr.E(apperr.KindStorage, "creating attachment file", err)
		}

		_, writeErr := f.Write(data)
		closeErr := f.Close()
		if err := errors.Join(writeErr, closeErr); err != nil {
			s.logger.Error("writing attachment file", "path", path, "error", err)
			_ = os.Remove(path)
			return "", apperr.E(apperr.KindStorage, "writing attachment file", err)
		}
		return name, nil
	}

	s.logger.Error("no free attachment filename", "name", sanitized, "attempts", maxNameAttempts)
	return "", apperr.E(apperr.KindStorage, "allocating attachment filename", fs.ErrExist)
}

// Remove deletes the image row in q and returns it. The file stays until
// Cleanup is called after commit.
func (s *Store) Remove(ctx context.Context, q *store.Queries, imageID int64) (*store.Image, error) {
	img, err := q.GetImage(ctx, imageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.E(apperr.KindNotFound, "image not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving image: %w", err)
	}

	if err := q.DeleteImage(ctx, imageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.E(apperr.KindNotFound, "image not found", err)
		}
		return nil, fmt.Errorf("deleting image row: %w", err)
	}
	return img, nil
}

// Delete removes an image row in its own transaction and then its file.
// check, when non-nil, runs inside the transaction before the row is
// removed and can veto the delete.
func (s *Store) Delete(ctx context.Context, db TxRunner, imageID int64, check func(ctx context.Context, q *store.Queries, img *store.Image) error) (*store.Image, error) {
	var removed *store.Image
	err := db.InTx(ctx, func(q *store.Queries) error {
		if check != nil {
			img, err := q.GetImage(ctx, imageID)
			if errors.Is(err, store.ErrNotFound) {
				return apperr.E(apperr.KindNotFound, "image not found", err)
			}
			if err != nil {
				return fmt.Errorf("resolving image: %w", err)
			}
			if err := check(ctx, q, img); err != nil {
				return err
			}
		}

		img, err := s.Remove(ctx, q, imageID)
		if err != nil {
			return err
		}
		removed = img
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Cleanup(removed.StoredFilename)
	return removed, nil
}

// Cleanup removes attachment files. A file that is already gone is logged
// and skipped.
func (s *Store) Cleanup(names ...string) {
	for _, name := range names {
		s.removeFile(name)
	}
}

func (s *Store) removeFile(name string) {
	path := filepath.Join(s.dir, name)
	err := os.Remove(path)
	switch {
	case err == nil:
		s.logger.Debug("removed attachment file", "file", name)
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug("attachment file already missing", "file", name)
	default:
		s.logger.Warn("removing attachment file", "path", path, "error", err)
	}
}

// ResolveURL maps a stored filename to its public URL.
func (s *Store) ResolveURL(storedFilename string) string {
	return s.baseURL + "/image/" + storedFilename
}

// Open opens a stored file for reading. Names that could escape the
// attachment directory are reported as not found.
func (s *Store) Open(storedFilename string) (*os.File, error) {
	if !validStoredName(storedFilename) {
		return nil, apperr.E(apperr.KindNotFound, "image not found", nil)
	}

	f, err := os.Open(filepath.Join(s.dir, storedFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.E(apperr.KindNotFound, "image not found", err)
	}
	if err != nil {
		s.logger.Error("opening attachment file", "file", storedFilename, "error", err)
		return nil, apperr.E(apperr.KindStorage, "opening attachment file", err)
	}
	return f, nil
}

func validStoredName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return SanitizeFilename(name) == name
}
