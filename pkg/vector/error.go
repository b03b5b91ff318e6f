package vector

import "errors"

var (
	// ErrNotFound is returned when a document is not found in the store.
	ErrNotFound = errors.New("document not found")

	// ErrCollectionNotFound is returned when a named collection does not
	// exist in the store.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrWrite is returned when persisting documents fails.
	ErrWrite = errors.New("vector store write failed")

	// ErrRead is returned when reading from the store fails.
	ErrRead = errors.New("vector store read failed")

	// ErrConnection is returned when the vector store connection fails.
	ErrConnection = errors.New("vector store connection failed")
)
