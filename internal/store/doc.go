// Package store provides relational persistence for notebox users, notes,
// tags, and image records.
//
// # Architecture
//
// SQLStore owns the *sql.DB and speaks either the sqlite or the postgres
// dialect. All data access lives on Queries, which runs against the pool or
// against a transaction:
//
//	note, err := st.GetNote(ctx, id)            // pool
//	err = st.InTx(ctx, func(q *store.Queries) error {
//		return q.DeleteNote(ctx, id)             // transaction
//	})
//
// Queries are written with ? placeholders and rebound to $n for postgres.
//
// # Drivers
//
//   - sqlite: modernc.org/sqlite (pure Go, default)
//   - sqlite3: github.com/mattn/go-sqlite3 (cgo)
//   - postgres: github.com/lib/pq
//   - pgx: github.com/jackc/pgx/v5/stdlib
//
// sqlite connections enable foreign keys, WAL, a busy timeout, and
// immediate transactions through the DSN so every pooled connection gets them.
//
// # Migrations
//
// Schema migrations are embedded under migrations/<dialect>/ and applied with
// golang-migrate when the store opens (or through `notebox migrate`).
//
// # Ownership
//
// An Image carries only the NoteID foreign key. A Note is loaded together
// with its tags (ordered by position) and images (ordered by id).
//
// # Errors
//
//   - ErrNotFound: requested row does not exist
//   - ErrUsernameExists: registration raced or repeated a username
//   - ErrDuplicateFilename: an image row already uses the stored filename
//
// Timestamps are stored as RFC3339 text in UTC.
package store
