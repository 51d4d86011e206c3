// Package storage provides content-addressable storage for emitted assets.
package storage

import (
	"context"
	"errors"
	"time"
)

// ObjectStore provides content-addressable storage. Objects are stored by
// their content hash so identical bytes occupy exactly one entry.
type ObjectStore interface {
	// Put stores an object and returns its content hash.
	// If the object already exists, it returns the existing hash without writing.
	Put(ctx context.Context, obj *Object) (hash string, err error)

	// Get retrieves an object by its content hash.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, hash string) (*Object, error)

	// Exists checks if an object with the given hash exists.
	Exists(ctx context.Context, hash string) (bool, error)

	// Delete removes an object by its content hash.
	Delete(ctx context.Context, hash string) error

	// List returns all object hashes matching the given type filter.
	// If objectType is empty, returns all objects.
	List(ctx context.Context, objectType ObjectType) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Object represents a stored artifact with its metadata.
type Object struct {
	// Hash is the content hash (SHA256 hex) of the data.
	Hash string

	// Type identifies the kind of object.
	Type ObjectType

	// Size is the size of the data in bytes.
	Size int64

	// Data is the object content.
	Data []byte

	// Metadata stores additional key-value pairs.
	Metadata Metadata
}

// Metadata stores object metadata.
type Metadata struct {
	CreatedAt    time.Time         `json:"created_at"`
	LastAccessed time.Time         `json:"last_accessed"`
	RefCount     int               `json:"ref_count"`
	Custom       map[string]string `json:"custom,omitempty"`
}

// Custom metadata keys set by the emitter.
const (
	MetaObjectType = "object_type"
	MetaPath       = "path"
	MetaModule     = "module"
	MetaStage      = "stage"
)

// ObjectType identifies the kind of stored object.
type ObjectType string

const (
	// ObjectTypeEmittedAsset is an auxiliary file emitted by a stage.
	ObjectTypeEmittedAsset ObjectType = "emitted_asset"

	// ObjectTypeModuleOutput is the final transformed content of a module.
	ObjectTypeModuleOutput ObjectType = "module_output"
)

// ErrNotFound is returned when an object doesn't exist.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	return "object not found: " + e.Hash
}

// IsNotFound returns true if err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
