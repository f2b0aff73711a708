// ABOUTME: Note aggregate persistence with ordered tags and owned images
// ABOUTME: Covers create, load, field replacement, cascade delete, listing, and search

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// CreateNote inserts the note row and its tags and fills in ID and
// timestamps. Images are created separately with CreateImage.
func (q *Queries) CreateNote(ctx context.Context, n *Note) error {
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}

	err := q.queryRow(ctx, `
		INSERT INTO notes (owner_id, title, content, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, n.OwnerID, n.Title, n.Content, formatTime(n.CreatedAt), formatTime(n.UpdatedAt)).Scan(&n.ID)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}

	if err := q.insertTags(ctx, n.ID, n.Tags); err != nil {
		return err
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	if n.Images == nil {
		n.Images = []Image{}
	}
	return nil
}

// GetNote retrieves a note with its tags and images.
// Returns ErrNotFound if the note doesn't exist.
func (q *Queries) GetNote(ctx context.Context, id int64) (*Note, error) {
	var n Note
	var createdAt, updatedAt string

	err := q.queryRow(ctx, `
		SELECT id, owner_id, title, content, created_at, updated_at
		FROM notes
		WHERE id = ?
	`, id).Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying note: %w", err)
	}

	if err := parseNoteTimes(&n, createdAt, updatedAt); err != nil {
		return nil, err
	}
	if err := q.loadChildren(ctx, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// UpdateNote replaces the note's title, content, and tags and bumps
// UpdatedAt. Owner and CreatedAt are never written.
// Returns ErrNotFound if the note doesn't exist.
func (q *Queries) UpdateNote(ctx context.Context, n *Note) error {
	n.UpdatedAt = time.Now().UTC()

	result, err := q.exec(ctx, `
		UPDATE notes
		SET title = ?, content = ?, updated_at = ?
		WHERE id = ?
	`, n.Title, n.Content, formatTime(n.UpdatedAt), n.ID)
	if err != nil {
		return fmt.Errorf("updating note: %w", err)
	}
	if err := expectOneRow(result); err != nil {
		return err
	}

	if _, err := q.exec(ctx, `DELETE FROM note_tags WHERE note_id = ?`, n.ID); err != nil {
		return fmt.Errorf("clearing tags: %w", err)
	}
	return q.insertTags(ctx, n.ID, n.Tags)
}

// DeleteNote removes a note, its tags, and its image rows. Files are the
// caller's concern.
// Returns ErrNotFound if the note doesn't exist.
func (q *Queries) DeleteNote(ctx context.Context, id int64) error {
	if _, err := q.exec(ctx, `DELETE FROM images WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("deleting note images: %w", err)
	}
	if _, err := q.exec(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
		return fmt.Errorf("deleting note tags: %w", err)
	}

	result, err := q.exec(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return expectOneRow(result)
}

// ListNotesByOwner returns every note owned by ownerID, newest first.
func (q *Queries) ListNotesByOwner(ctx context.Context, ownerID int64) ([]*Note, error) {
	return q.listNotes(ctx, `
		SELECT id, owner_id, title, content, created_at, updated_at
		FROM notes
		WHERE owner_id = ?
		ORDER BY id DESC
	`, ownerID)
}

// SearchNotes returns notes owned by ownerID whose title or content
// contains term. Matching ignores ASCII case; LIKE wildcards in term are
// matched literally.
func (q *Queries) SearchNotes(ctx context.Context, ownerID int64, term string) ([]*Note, error) {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	return q.listNotes(ctx, `
		SELECT id, owner_id, title, content, created_at, updated_at
		FROM notes
		WHERE owner_id = ?
		  AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')
		ORDER BY id DESC
	`, ownerID, pattern, pattern)
}

// escapeLike escapes the LIKE metacharacters with a backslash.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// listNotes runs a note query and loads children once the row cursor is
// closed, since a transaction cannot interleave statements with open rows.
func (q *Queries) listNotes(ctx context.Context, query string, args ...any) ([]*Note, error) {
	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying notes: %w", err)
	}

	notes := []*Note{}
	for rows.Next() {
		var n Note
		var createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.OwnerID, &n.Title, &n.Content, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		if err := parseNoteTimes(&n, createdAt, updatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterating notes: %w", err)
	}
	rows.Close()

	for _, n := range notes {
		if err := q.loadChildren(ctx, n); err != nil {
			return nil, err
		}
	}
	return notes, nil
}

func (q *Queries) loadChildren(ctx context.Context, n *Note) error {
	tags, err := q.listTags(ctx, n.ID)
	if err != nil {
		return err
	}
	images, err := q.ListImages(ctx, n.ID)
	if err != nil {
		return err
	}
	n.Tags = tags
	n.Images = images
	return nil
}

func (q *Queries) listTags(ctx context.Context, noteID int64) ([]string, error) {
	rows, err := q.query(ctx, `
		SELECT tag FROM note_tags
		WHERE note_id = ?
		ORDER BY position ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tags: %w", err)
	}
	return tags, nil
}

func (q *Queries) insertTags(ctx context.Context, noteID int64, tags []string) error {
	for i, tag := range tags {
		if _, err := q.exec(ctx, `
			INSERT INTO note_tags (note_id, position, tag)
			VALUES (?, ?, ?)
		`, noteID, i, tag); err != nil {
			return fmt.Errorf("inserting tag: %w", err)
		}
	}
	return nil
}

func parseNoteTimes(n *Note, createdAt, updatedAt string) error {
	var err error
	if n.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return err
	}
	if n.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return err
	}
	return nil
}
