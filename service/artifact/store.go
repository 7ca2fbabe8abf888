// Package artifact stores rendered report documents.
package artifact

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrNotFound is returned by Get for a missing artifact.
var ErrNotFound = errors.New("artifact not found")

// Store persists artifacts by relative path.
type Store interface {
	// Put writes data under path and returns its absolute location.
	Put(ctx context.Context, path string, data []byte) (string, error)

	Get(ctx context.Context, path string) ([]byte, error)
}

// Path joins the artifact prefix, instance id and artifact name.
func Path(prefix, instanceID, name string) string {
	return strings.TrimPrefix(path.Join(prefix, instanceID, name), "/")
}
