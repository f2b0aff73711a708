// Package attachment stores note images as files in a configured directory,
// each with a matching row in the images table.
//
// # Consistency
//
// The file and the row are written without a shared transaction, so the
// two writes are ordered:
//
//   - Upload writes the file first (O_EXCL, never overwriting) and records
//     the row second. A failed or cancelled insert removes the file.
//   - Remove deletes the row inside the caller's transaction. The file is
//     removed by Cleanup only after the transaction commits; a missing file
//     is not an error.
//
// The database therefore never references a file that was never written.
// A crash between commit and Cleanup can leave an orphan file; that is the
// accepted cost.
//
// # Filenames
//
// Stored names are "<epochMillis>_<sanitized>" where sanitization maps every
// character outside [A-Za-z0-9._-] to '_'. When that name is already taken
// a short random suffix is inserted before the extension.
package attachment
