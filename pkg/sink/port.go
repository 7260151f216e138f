// Package sink publishes normalized records to a hierarchical key-value store.
package sink

import (
	"context"
	"errors"
	"strings"
)

// SinkWriteErr wraps every failed write.
var SinkWriteErr = errors.New("sink write failed")

// Store addresses JSON values by slash separated paths.
type Store interface {
	// Set replaces the value at path.
	Set(ctx context.Context, path string, value any) error
	// Update merges fields into the object at path. A nil field value
	// removes that field.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Get decodes the value at path into dst and reports whether it existed.
	Get(ctx context.Context, path string, dst any) (bool, error)
	Delete(ctx context.Context, path string) error
}

// Watcher delivers the current value at a path followed by every later
// change until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, path string, fn func(value []byte)) error
}

// ImageStore persists binary snapshots and returns where they were stored.
type ImageStore interface {
	SaveImage(dir, name string, data []byte) (string, error)
}

// Path joins segments with "/", dropping empty segments and stray slashes.
func Path(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, "/")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}
