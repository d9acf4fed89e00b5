// Package middleware provides HTTP middleware for the scanner API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with bounded path cardinality
//   - Response compression (gzip) for JSON payloads
package middleware
