package domain

import "errors"

// ErrEmbeddingUnavailable marks failures from the embedding collaborator.
// Wrapped errors from retrieval carry the underlying cause.
var ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

// ErrIndexUnavailable marks failures from the vector index collaborator.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// ErrNotReady is returned by the pipeline when answering is attempted before
// a successful warm-up.
var ErrNotReady = errors.New("pipeline not ready")
