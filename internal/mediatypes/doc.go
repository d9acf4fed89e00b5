// Package mediatypes provides media kind classification and MIME type
// lookup for library assets based on file extensions.
package mediatypes
