// Package handlers provides HTTP request handlers for the scanner API.
//
// It includes handlers for:
//   - Scan control (start, cancel, status, reset)
//   - Result listing, frames, thumbnails and deletion
//   - PIN authentication and sessions
//   - Health checks and version info
package handlers
