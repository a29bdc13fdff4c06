// Package storage defines the common interfaces for various storage adapters.
// These interfaces abstract storage operations, allowing the batch framework
// to interact with different storage backends (local file system, GCS)
// through a unified API.
package storage

import (
	"context"
	"io"

	coreAdapter "github.com/tigerroll/surfin-tutorial/pkg/batch/core/adapter"
)

// StorageExecutor defines generic storage operations.
type StorageExecutor interface {
	// Upload writes data to objectName in bucket, replacing any existing object.
	// An empty bucket selects the connection's configured bucket.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download opens objectName for reading. The caller closes the returned reader.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for every object name under prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject removes objectName. A missing object is not an error.
	DeleteObject(ctx context.Context, bucket, objectName string) error
}

// StorageConnection is one named, configured storage backend.
type StorageConnection interface {
	coreAdapter.ResourceConnection
	StorageExecutor
}

// StorageProvider creates and caches the connections of one storage type.
type StorageProvider interface {
	// GetConnection returns the connection called name, creating it on first use.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes every connection created by the provider.
	CloseAll() error
	// Type returns the storage type handled by the provider, such as "local" or "gcs".
	Type() string
}

// StorageConnectionResolver resolves a configured storage connection by name.
type StorageConnectionResolver interface {
	coreAdapter.ResourceConnectionResolver

	// ResolveStorageConnection returns the connection called name, delegating to the
	// provider registered for its configured type.
	ResolveStorageConnection(ctx context.Context, name string) (StorageConnection, error)
}
