// ABOUTME: Image record persistence keyed by the owning note id
// ABOUTME: Rows reference files in the attachment directory by stored filename

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateImage inserts an image row and fills in its ID. CreatedAt defaults
// to now.
func (q *Queries) CreateImage(ctx context.Context, img *Image) error {
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}

	err := q.queryRow(ctx, `
		INSERT INTO images (note_id, stored_filename, created_at)
		VALUES (?, ?, ?)
		RETURNING id
	`, img.NoteID, img.StoredFilename, formatTime(img.CreatedAt)).Scan(&img.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateFilename
		}
		return fmt.Errorf("inserting image: %w", err)
	}
	return nil
}

// GetImage retrieves an image row by id.
// Returns ErrNotFound if the image doesn't exist.
func (q *Queries) GetImage(ctx context.Context, id int64) (*Image, error) {
	var img Image
	var createdAt string

	err := q.queryRow(ctx, `
		SELECT id, note_id, stored_filename, created_at
		FROM images
		WHERE id = ?
	`, id).Scan(&img.ID, &img.NoteID, &img.StoredFilename, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying image: %w", err)
	}

	if img.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	return &img, nil
}

// ListImages returns a note's images in upload order.
func (q *Queries) ListImages(ctx context.Context, noteID int64) ([]Image, error) {
	rows, err := q.query(ctx, `
		SELECT id, note_id, stored_filename, created_at
		FROM images
		WHERE note_id = ?
		ORDER BY id ASC
	`, noteID)
	if err != nil {
		return nil, fmt.Errorf("querying images: %w", err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		var img Image
		var createdAt string
		if err := rows.Scan(&img.ID, &img.NoteID, &img.StoredFilename, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning image: %w", err)
		}
		if img.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating images: %w", err)
	}
	return images, nil
}

// DeleteImage removes an image row.
// Returns ErrNotFound if the image doesn't exist.
func (q *Queries) DeleteImage(ctx context.Context, id int64) error {
	result, err := q.exec(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return expectOneRow(result)
}

// expectOneRow returns ErrNotFound when a statement touched no rows.
func expectOneRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
