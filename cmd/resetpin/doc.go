// Package main provides the resetpin command-line tool for managing the
// scanner's PIN outside the web interface.
//
// The tool connects directly to the SQLite database used by the server,
// so it must run with the same DATABASE_DIR. Updating the PIN
// invalidates every active session.
//
// Usage:
//
//	resetpin reset   # prompt for a new PIN (input is hidden)
//	resetpin status  # report whether a PIN is configured
package main
