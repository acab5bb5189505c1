package types

import "errors"

// Sentinel errors for the abstract error taxonomy in the governing
// specification's error-handling design: ConfigError, IoError,
// ParseError, EmbeddingError, StoreError, IntegrityError, Cancelled,
// DeadlineExceeded. Components wrap one of these with %w so callers can
// dispatch on errors.Is without parsing messages.
var (
	ErrConfig           = errors.New("config error")
	ErrIO               = errors.New("io error")
	ErrParse            = errors.New("parse error")
	ErrEmbedding        = errors.New("embedding error")
	ErrStore            = errors.New("store error")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrIntegrity        = errors.New("integrity error")
	ErrCancelled        = errors.New("cancelled")
	ErrDeadlineExceeded = errors.New("deadline exceeded")
)

// Result-type errors retained from the original validation helpers.
var (
	ErrInvalidChunkID        = errors.New("invalid chunk ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
	ErrMissingFileInfo       = errors.New("file info is required")
	ErrEmptyContent          = errors.New("content cannot be empty")
)
