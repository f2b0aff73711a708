// ABOUTME: Data types and sentinel errors for notebox persistence
// ABOUTME: Defines User, Note, and Image rows shared by every store backend

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrUsernameExists is returned when creating a user whose username is taken
var ErrUsernameExists = errors.New("username already exists")

// ErrDuplicateFilename is returned when an image row with the same stored
// filename already exists
var ErrDuplicateFilename = errors.New("stored filename already exists")

// User is a registered account. Username never changes after creation.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Note is the aggregate root: a note and the images it exclusively owns.
type Note struct {
	ID        int64
	OwnerID   int64
	Title     string
	Content   string
	Tags      []string
	Images    []Image
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Image is the record of an attachment file stored under the images
// directory. It refers to its note only by id.
type Image struct {
	ID             int64
	NoteID         int64
	StoredFilename string
	CreatedAt      time.Time
}

// ImageIDs returns the ids of the note's images in order.
func (n *Note) ImageIDs() []int64 {
	ids := make([]int64, len(n.Images))
	for i, img := range n.Images {
		ids[i] = img.ID
	}
	return ids
}

// HasImage reports whether imageID belongs to this note.
func (n *Note) HasImage(imageID int64) bool {
	for _, img := range n.Images {
		if img.ID == imageID {
			return true
		}
	}
	return false
}
