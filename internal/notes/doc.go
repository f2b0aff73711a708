// Package notes implements the note aggregate: a note with its ordered tags
// and the images it owns, created, changed, and deleted as one unit.
//
// Every mutation runs in a single database transaction that first re-checks
// ownership with AuthorizeMutation. Image files follow the attachment
// package's ordering: files written during a transaction that rolls back
// are removed, and files of deleted images are removed only after commit.
//
// Concurrent updates to the same note are last-write-wins. There is no
// version column.
package notes
