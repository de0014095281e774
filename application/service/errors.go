package service

import "errors"

// Error taxonomy surfaced to transports. Transports map these to their own
// status codes; services never expose storage or HTTP details directly.
var (
	// ErrInvalidRepository indicates the repository argument is not owner/name.
	ErrInvalidRepository = errors.New("invalid repository: expected owner/name")

	// ErrInvalidThreshold indicates the threshold argument is outside [0,1].
	ErrInvalidThreshold = errors.New("invalid threshold: must be in [0,1]")

	// ErrNotIndexed indicates the target issue has no cached embedding; the
	// caller should refresh the repository first.
	ErrNotIndexed = errors.New("issue not indexed: refresh the repository first")

	// ErrRefreshInProgress indicates a refresh for the same repository is
	// already running.
	ErrRefreshInProgress = errors.New("refresh already in progress for repository")

	// ErrSourceUnavailable indicates the issue tracker fetch failed; the
	// watermark is untouched so the next refresh retries the same window.
	ErrSourceUnavailable = errors.New("issue source unavailable")

	// ErrStoreUnavailable indicates the persistence layer failed.
	ErrStoreUnavailable = errors.New("embedding store unavailable")
)
