// ABOUTME: Ownership checks run before any note or image mutation
// ABOUTME: Resolves the resource in the current transaction and compares owners

package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/auth"
	"github.com/2389/notebox/internal/store"
)

// AuthorizeMutation loads the note and checks that identity owns it.
// It returns a NotFound error when the note is missing and a Forbidden
// error when someone else owns it.
func AuthorizeMutation(ctx context.Context, q *store.Queries, noteID int64, identity *auth.Identity) (*store.Note, error) {
	if identity == nil {
		return nil, apperr.E(apperr.KindAuth, "unauthorized", nil)
	}

	note, err := q.GetNote(ctx, noteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.E(apperr.KindNotFound, "note not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving note: %w", err)
	}

	if note.OwnerID != identity.UserID {
		return nil, apperr.E(apperr.KindForbidden, "you do not own this note", nil)
	}
	return note, nil
}

// AuthorizeImageMutation resolves the image, then authorizes against its
// parent note.
func AuthorizeImageMutation(ctx context.Context, q *store.Queries, imageID int64, identity *auth.Identity) (*store.Image, *store.Note, error) {
	img, err := q.GetImage(ctx, imageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, apperr.E(apperr.KindNotFound, "image not found", err)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolving image: %w", err)
	}

	note, err := AuthorizeMutation(ctx, q, img.NoteID, identity)
	if err != nil {
		return nil, nil, err
	}
	return img, note, nil
}
