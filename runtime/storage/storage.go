// Package storage defines the object store that receives finalized interview
// recordings, plus key validation shared by its backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidKey is returned when an object key is empty, absolute or escapes
// the store root.
var ErrInvalidKey = errors.New("storage: invalid object key")

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// ObjectStore persists recording bundles and returns a URL for each upload.
// Uploading the same key twice overwrites the previous object.
type ObjectStore interface {
	// Upload stores data under key and returns its retrievable URL.
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)

	// Delete removes the object stored under key.
	Delete(ctx context.Context, key string) error
}

// ValidateKey reports whether key is a clean relative slash-separated path.
func ValidateKey(key string) error {
	switch {
	case key == "":
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	case strings.HasPrefix(key, "/"):
		return fmt.Errorf("%w: %q is absolute", ErrInvalidKey, key)
	case strings.Contains(key, "\\"):
		return fmt.Errorf("%w: %q contains a backslash", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean != key || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q is not a clean path", ErrInvalidKey, key)
	}
	return nil
}
