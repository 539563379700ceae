package media

import "errors"

var (
	// ErrStorageUnavailable indicates no asset storage backend is configured.
	ErrStorageUnavailable = errors.New("asset storage unavailable")
	// ErrIngestorClosed indicates the ingestor no longer accepts work.
	ErrIngestorClosed = errors.New("asset ingestor closed")
)
