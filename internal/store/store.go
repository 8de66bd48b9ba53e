// Package store provides a small document-collection API over a key-value
// backend. It backs the licensing client's persistent cache tier and its
// mutation-tracking collections, and tolerates last-write-wins semantics
// when the bot is horizontally scaled.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is a generic document collection API. Documents are JSON values
// addressed by (collection, key).
type Store interface {
	// FindOne loads the document at (collection, key) into dest.
	FindOne(ctx context.Context, collection, key string, dest any) error
	// FindMany returns the raw documents of a collection whose keys start
	// with prefix. An empty prefix returns the whole collection.
	FindMany(ctx context.Context, collection, prefix string) ([][]byte, error)
	// UpsertOne writes doc at (collection, key), replacing any existing value.
	UpsertOne(ctx context.Context, collection, key string, doc any) error
	// DeleteOne removes the document at (collection, key). Deleting a missing
	// document is not an error.
	DeleteOne(ctx context.Context, collection, key string) error
	// Close releases backend resources.
	Close() error
}
