// ABOUTME: Tests for the SQL store against a temporary sqlite database
// ABOUTME: Covers users, note aggregate CRUD, tag ordering, images, search, and transactions

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/notebox/internal/config"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *SQLStore {
	t.Helper()

	st, err := Open(context.Background(), config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		st.Close()
	})
	return st
}

func createTestUser(t *testing.T, st *SQLStore, username string) *User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), username, "hash-"+username)
	require.NoError(t, err)
	return u
}

func TestOpen_CreatesDirectoryAndIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "notes.db")
	cfg := config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}

	st, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, st.Ping(context.Background()))
	assert.Equal(t, DialectSQLite, st.Dialect())
	require.NoError(t, st.Close())

	// Reopening runs migrations again with nothing to apply
	st, err = Open(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, st.Close())
}

func TestCreateUser_Duplicate(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()

	u := createTestUser(t, st, "alice")
	assert.NotZero(t, u.ID)

	_, err := st.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, ErrUsernameExists)

	got, err := st.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash-alice", got.PasswordHash)

	byID, err := st.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = st.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNote_CreateGetUpdate(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, st, "alice")

	note := &Note{
		OwnerID: owner.ID,
		Title:   "Groceries",
		Content: "milk, eggs",
		Tags:    []string{"home", "", "weekly"},
	}
	require.NoError(t, st.CreateNote(ctx, note))
	assert.NotZero(t, note.ID)
	assert.False(t, note.CreatedAt.IsZero())

	got, err := st.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Title)
	assert.Equal(t, []string{"home", "", "weekly"}, got.Tags)
	assert.Empty(t, got.Images)
	assert.Equal(t, owner.ID, got.OwnerID)

	got.Title = "Shopping"
	got.Tags = []string{"errands"}
	require.NoError(t, st.UpdateNote(ctx, got))

	updated, err := st.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", updated.Title)
	assert.Equal(t, "milk, eggs", updated.Content)
	assert.Equal(t, []string{"errands"}, updated.Tags)
	assert.True(t, !updated.UpdatedAt.Before(updated.CreatedAt))

	missing := &Note{ID: 9999, Title: "x"}
	assert.ErrorIs(t, st.UpdateNote(ctx, missing), ErrNotFound)
}

func TestImages_OrderAndDelete(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, st, "alice")

	note := &Note{OwnerID: owner.ID, Title: "pics"}
	require.NoError(t, st.CreateNote(ctx, note))

	first := &Image{NoteID: note.ID, StoredFilename: "1_a.png"}
	second := &Image{NoteID: note.ID, StoredFilename: "2_b.png"}
	require.NoError(t, st.CreateImage(ctx, first))
	require.NoError(t, st.CreateImage(ctx, second))

	dup := &Image{NoteID: note.ID, StoredFilename: "1_a.png"}
	assert.ErrorIs(t, st.CreateImage(ctx, dup), ErrDuplicateFilename)

	got, err := st.GetNote(ctx, note.ID)
	require.NoError(t, err)
	require.Len(t, got.Images, 2)
	assert.Equal(t, []int64{first.ID, second.ID}, got.ImageIDs())
	assert.True(t, got.HasImage(second.ID))

	require.NoError(t, st.DeleteImage(ctx, first.ID))
	assert.ErrorIs(t, st.DeleteImage(ctx, first.ID), ErrNotFound)

	_, err = st.GetImage(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	img, err := st.GetImage(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, note.ID, img.NoteID)
}

func TestImage_RequiresExistingNote(t *testing.T) {
	st := setupTestStore(t)

	err := st.CreateImage(context.Background(), &Image{NoteID: 424242, StoredFilename: "1_orphan.png"})
	assert.Error(t, err, "foreign key should reject an image without a note")
}

func TestDeleteNote_RemovesChildren(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, st, "alice")

	note := &Note{OwnerID: owner.ID, Title: "t", Tags: []string{"a"}}
	require.NoError(t, st.CreateNote(ctx, note))
	img := &Image{NoteID: note.ID, StoredFilename: "1_x.png"}
	require.NoError(t, st.CreateImage(ctx, img))

	require.NoError(t, st.DeleteNote(ctx, note.ID))

	_, err := st.GetNote(ctx, note.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = st.GetImage(ctx, img.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, st.DeleteNote(ctx, note.ID), ErrNotFound)
}

func TestListAndSearch_ScopedToOwner(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, st, "alice")
	bob := createTestUser(t, st, "bob")

	for _, n := range []*Note{
		{OwnerID: alice.ID, Title: "Go Concurrency", Content: "channels"},
		{OwnerID: alice.ID, Title: "Recipes", Content: "100% rye bread"},
		{OwnerID: bob.ID, Title: "go fishing", Content: "lake"},
	} {
		require.NoError(t, st.CreateNote(ctx, n))
	}

	list, err := st.ListNotesByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Recipes", list[0].Title, "newest first")

	hits, err := st.SearchNotes(ctx, alice.ID, "GO")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Go Concurrency", hits[0].Title)

	hits, err = st.SearchNotes(ctx, alice.ID, "%")
	require.NoError(t, err)
	require.Len(t, hits, 1, "percent must match literally")
	assert.Equal(t, "Recipes", hits[0].Title)

	hits, err = st.SearchNotes(ctx, alice.ID, "lake")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestInTx_RollsBackOnError(t *testing.T) {
	st := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, st, "alice")

	boom := errors.New("boom")
	var noteID int64
	err := st.InTx(ctx, func(q *Queries) error {
		n := &Note{OwnerID: owner.ID, Title: "doomed"}
		if err := q.CreateNote(ctx, n); err != nil {
			return err
		}
		noteID = n.ID
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = st.GetNote(ctx, noteID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRebind(t *testing.T) {
	pg := &Queries{dialect: DialectPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := &Queries{dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now\\`, escapeLike(`50% off_now\`))
}
