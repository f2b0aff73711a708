// ABOUTME: Tests for attachment storage against sqlite and a temp directory
// ABOUTME: Covers naming, validation, write-then-record, delete ordering, and URL mapping

package attachment

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/notebox/internal/apperr"
	"github.com/2389/notebox/internal/config"
	"github.com/2389/notebox/internal/store"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	st    *store.SQLStore
	att   *Store
	note  *store.Note
	dir   string
	clock time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	tmp := t.TempDir()

	st, err := store.Open(ctx, config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(tmp, "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	user, err := st.CreateUser(ctx, "alice", "hash")
	require.NoError(t, err)
	note := &store.Note{OwnerID: user.ID, Title: "with pictures"}
	require.NoError(t, st.CreateNote(ctx, note))

	dir := filepath.Join(tmp, "images")
	f := &fixture{
		st:    st,
		att:   New(dir, "http://notes.test/", nil),
		note:  note,
		dir:   dir,
		clock: time.UnixMilli(1700000000123),
	}
	f.att.now = func() time.Time { return f.clock }
	return f
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a b.png", "a_b.png"},
		{"photo-1_final.JPG", "photo-1_final.JPG"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"ünïcødé.gif", "_n_c_d_.gif"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}
}

func TestUpload_NamesAndRecords(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	data := pngBytes(t)

	img, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, data, "a b.png")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d+_a_b\.png$`), img.StoredFilename)
	assert.Equal(t, "1700000000123_a_b.png", img.StoredFilename)
	assert.Equal(t, f.note.ID, img.NoteID)

	onDisk, err := os.ReadFile(filepath.Join(f.dir, img.StoredFilename))
	require.NoError(t, err)
	assert.Equal(t, data, onDisk)

	note, err := f.st.GetNote(ctx, f.note.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{img.ID}, note.ImageIDs())

	// A later request gets a later timestamp
	f.clock = f.clock.Add(5 * time.Millisecond)
	later, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, data, "a b.png")
	require.NoError(t, err)
	assert.Equal(t, "1700000000128_a_b.png", later.StoredFilename)
}

func TestUpload_SameMillisecondGetsSuffix(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	data := pngBytes(t)

	first, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, data, "a b.png")
	require.NoError(t, err)
	second, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, data, "a b.png")
	require.NoError(t, err)

	assert.NotEqual(t, first.StoredFilename, second.StoredFilename)
	assert.Regexp(t, `^1700000000123_a_b-[0-9a-f]{6}\.png$`, second.StoredFilename)
}

func TestUpload_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, nil, "empty.png")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.att.Upload(ctx, f.st.Queries, f.note.ID, []byte("plain text, not an image"), "notes.txt")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.att.Upload(ctx, f.st.Queries, 9999, pngBytes(t), "x.png")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	entries, _ := os.ReadDir(f.dir)
	assert.Empty(t, entries, "rejected uploads must not leave files")
}

func TestUpload_StorageErrorLeavesNoRow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A regular file where the directory should be makes MkdirAll fail
	blocked := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0644))
	att := New(blocked, "http://notes.test", nil)

	_, err := att.Upload(ctx, f.st.Queries, f.note.ID, pngBytes(t), "x.png")
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.Equal(t, "storage failure", apperr.Message(err))

	note, err := f.st.GetNote(ctx, f.note.ID)
	require.NoError(t, err)
	assert.Empty(t, note.Images)
}

func TestUpload_CancelledContextRemovesFile(t *testing.T) {
	f := setup(t)
	ctx, cancel := context.WithCancel(context.Background())

	// Resolve the note first, then cancel before the write completes
	q := f.st.Queries
	_, err := q.GetNote(ctx, f.note.ID)
	require.NoError(t, err)
	cancel()

	_, err = f.att.Upload(ctx, q, f.note.ID, pngBytes(t), "x.png")
	require.Error(t, err)

	entries, _ := os.ReadDir(f.dir)
	assert.Empty(t, entries)
}

func TestUpload_RowFailureRemovesFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	boom := errors.New("abort")

	var written string
	err := f.st.InTx(ctx, func(q *store.Queries) error {
		img, err := f.att.Upload(ctx, q, f.note.ID, pngBytes(t), "x.png")
		if err != nil {
			return err
		}
		written = img.StoredFilename
		return boom
	})
	require.ErrorIs(t, err, boom)

	// The row rolled back; the caller owns cleanup of the file
	f.att.Cleanup(written)
	_, statErr := os.Stat(filepath.Join(f.dir, written))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpload_DuplicateRowIsStorageError(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// A row already claims the name but its file is gone, so the disk
	// write succeeds and the insert hits the unique index
	require.NoError(t, f.st.CreateImage(ctx, &store.Image{
		NoteID:         f.note.ID,
		StoredFilename: "1700000000123_x.png",
		CreatedAt:      f.clock,
	}))

	_, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, pngBytes(t), "x.png")
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.ErrorIs(t, err, store.ErrDuplicateFilename)
	assert.Equal(t, "storage failure", apperr.Message(err))

	entries, _ := os.ReadDir(f.dir)
	assert.Empty(t, entries)
}

func TestDelete_RemovesRowThenFile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	img, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, pngBytes(t), "a b.png")
	require.NoError(t, err)
	path := filepath.Join(f.dir, img.StoredFilename)

	removed, err := f.att.Delete(ctx, f.st, img.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, img.ID, removed.ID)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "file should be gone")

	note, err := f.st.GetNote(ctx, f.note.ID)
	require.NoError(t, err)
	assert.Empty(t, note.Images)

	_, err = f.att.Delete(ctx, f.st, img.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDelete_MissingFileIsNotFatal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	img, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, pngBytes(t), "drift.png")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(f.dir, img.StoredFilename)))

	_, err = f.att.Delete(ctx, f.st, img.ID, nil)
	require.NoError(t, err)

	_, err = f.st.GetImage(ctx, img.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete_CheckVetoKeepsEverything(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	img, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, pngBytes(t), "keep.png")
	require.NoError(t, err)

	veto := apperr.E(apperr.KindForbidden, "not yours", nil)
	_, err = f.att.Delete(ctx, f.st, img.ID, func(context.Context, *store.Queries, *store.Image) error {
		return veto
	})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.st.GetImage(ctx, img.ID)
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(f.dir, img.StoredFilename))
	require.NoError(t, err)
}

func TestResolveURL(t *testing.T) {
	att := New(t.TempDir(), "https://notes.example.com/", nil)
	assert.Equal(t, "https://notes.example.com/image/1_a.png", att.ResolveURL("1_a.png"))
}

func TestOpen(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	img, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, pngBytes(t), "a.png")
	require.NoError(t, err)

	file, err := f.att.Open(img.StoredFilename)
	require.NoError(t, err)
	file.Close()

	// Doubled dots survive sanitizing and must still be served
	f.clock = f.clock.Add(time.Millisecond)
	dotted, err := f.att.Upload(ctx, f.st.Queries, f.note.ID, pngBytes(t), "holiday..final.png")
	require.NoError(t, err)
	assert.Equal(t, "1700000000124_holiday..final.png", dotted.StoredFilename)
	file, err = f.att.Open(dotted.StoredFilename)
	require.NoError(t, err)
	file.Close()

	for _, name := range []string{"", "..", "../test.db", `..\x`, "sub/x.png", "nope.png"} {
		_, err := f.att.Open(name)
		assert.ErrorIs(t, err, apperr.ErrNotFound, "name %q", name)
	}
}
