// Package preview renders small JPEG previews of sensitive scan results
// for the results API, with an on-disk cache keyed by result identifier.
package preview
