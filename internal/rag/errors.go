package rag

import "errors"

var (
	// ErrConfiguration marks invalid chunking, retrieval or index settings.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrUnreadablePDF is returned when the input is not a parseable PDF container.
	ErrUnreadablePDF = errors.New("unreadable pdf")

	// ErrProviderNotInitialized is returned when a pipeline runs before Providers.Init succeeded.
	ErrProviderNotInitialized = errors.New("providers not initialized")

	// ErrIndexUnavailable wraps any failed call to the vector index service.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrIndexNotReady is returned when a newly created index does not become queryable in time.
	ErrIndexNotReady = errors.New("vector index not ready")

	// ErrMetadataPersistence wraps failed metadata store writes. Ingestion absorbs it.
	ErrMetadataPersistence = errors.New("metadata persistence failed")
)
