package domain

import "errors"

var (
	// ErrMissingCredentials signals that no usable credential was configured.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrMissingEndpoint signals a missing vector store endpoint.
	ErrMissingEndpoint = errors.New("missing endpoint")
	// ErrAuthFailed signals that every configured authentication method was rejected.
	ErrAuthFailed = errors.New("all authentication methods failed")

	// ErrCollectionNotFound signals a missing collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrVectorDimMismatch signals a vector whose length differs from the collection dimension.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrInvalidItem signals a knowledge item that violates the collection schema bounds.
	ErrInvalidItem = errors.New("invalid knowledge item")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
