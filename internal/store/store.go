// Package store defines the document store the organization service persists
// to. Backends live in the memory, bolt and postgres subpackages.
package store

import (
	"context"
	"errors"
)

// IDField is the store generated document identifier.
const IDField = "_id"

// Sentinel errors for document store operations
var (
	ErrNoDocuments  = errors.New("no documents matched")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Store hands out collections by name.
type Store interface {
	// Collection returns a handle to the named collection. The collection is
	// created implicitly by the first write.
	Collection(name string) Collection

	// Close releases any resources held by the store.
	Close() error
}

// Collection is a named set of schema-less documents.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// FindOne returns the first document matching filter in insertion order.
	// Returns ErrNoDocuments if nothing matches.
	FindOne(ctx context.Context, filter Filter) (Document, error)

	// Find returns every document matching filter in insertion order.
	// An empty filter matches all documents.
	Find(ctx context.Context, filter Filter) ([]Document, error)

	// InsertOne stores doc and returns its ID, generating one when doc has no _id.
	// Returns ErrDuplicateKey if a unique index or the _id is violated.
	InsertOne(ctx context.Context, doc Document) (string, error)

	// InsertMany stores docs atomically and returns their IDs in order.
	// Returns ErrDuplicateKey if any document violates a unique index.
	InsertMany(ctx context.Context, docs []Document) ([]string, error)

	// UpdateOne merges set into the top level fields of the first document
	// matching filter. The _id field cannot be changed.
	// Returns ErrNoDocuments if nothing matches, ErrDuplicateKey if the result
	// violates a unique index.
	UpdateOne(ctx context.Context, filter Filter, set Document) error

	// DeleteOne removes the first document matching filter. Deleting nothing
	// is not an error.
	DeleteOne(ctx context.Context, filter Filter) error

	// Drop removes the collection, its documents and its indexes. Dropping a
	// collection that does not exist is not an error.
	Drop(ctx context.Context) error

	// CreateUniqueIndex enforces uniqueness of field across the collection.
	// Creating an existing index is a no-op. Returns ErrDuplicateKey if
	// existing documents already violate it.
	CreateUniqueIndex(ctx context.Context, field string) error
}
