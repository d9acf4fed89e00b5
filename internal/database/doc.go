// Package database manages the SQLite-backed asset catalog and the
// single-user authentication state.
//
// The catalog is the persistent index of library assets the scanner
// enumerates from: id, path, media kind, size, modification time and an
// optional remote URL for non-resident originals. Scan sessions and
// their results are never persisted here; only the library index is.
//
// The database runs in WAL mode with a busy timeout to tolerate
// concurrent readers during catalog refreshes.
package database
