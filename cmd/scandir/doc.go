// Package main provides scandir, a one-shot command-line scan of an
// arbitrary folder.
//
// Unlike the server, scandir needs no catalog database: it walks the
// target directory directly, runs every supported media file through
// the classifier sidecar, and prints the flagged paths. The exit code
// is 0 when nothing was flagged, 2 when at least one asset was, and 1
// on error.
//
// Usage:
//
//	scandir -dir /photos
//	scandir -dir /photos -videos -json
//	scandir -dir /photos -classifier http://127.0.0.1:5800
package main
