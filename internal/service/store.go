// Package service implements the backup and restore engines, delegating
// secret access and artifact persistence to interfaces.
package service

import (
	"context"

	"github.com/atinyakov/vaultkeeper/internal/models"
)

// ArtifactStore is the object store artifacts are written to and read from.
type ArtifactStore interface {
	// Put stores data under name. Implementations must not expose partial writes.
	Put(ctx context.Context, name string, data []byte) error
	// Head reports whether name exists.
	Head(ctx context.Context, name string) (bool, error)
	// Get returns the full bytes stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
	// List returns every artifact whose name starts with prefix.
	List(ctx context.Context, prefix string) ([]models.ArtifactInfo, error)
}

// SecretStore is an authenticated view of one secret store server.
type SecretStore interface {
	// Authenticate logs in with the entry's credentials.
	Authenticate(ctx context.Context, creds models.Credentials) error
	// List returns the child names of a folder; folders end with "/".
	List(ctx context.Context, path string) ([]string, error)
	// Read returns the full content of one leaf.
	Read(ctx context.Context, path string) (models.SecretContent, error)
}

// Connector builds an unauthenticated SecretStore for an entry.
type Connector func(entry models.Entry) (SecretStore, error)
