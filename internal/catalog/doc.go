// Package catalog maintains the persistent index of the media library
// and acts as the asset source for scan sessions.
//
// The catalog walks the library directory in parallel, storing one row
// per supported media file (images and videos, classified by extension).
// It keeps itself current three ways:
//   - an initial refresh at startup
//   - filesystem watching via fsnotify with debounced refreshes
//   - periodic full refreshes at a configurable interval
//
// Scan sessions enumerate their immutable snapshot from the catalog,
// ordered newest first. The catalog also owns library deletions: removing
// an asset deletes the backing file first and only then drops the row.
//
// Zero-byte files are treated as non-resident placeholders when a remote
// originals base URL is configured; the fetcher may download their bytes
// when a scan permits network access.
package catalog
