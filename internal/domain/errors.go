package domain

import "errors"

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidUserID         = errors.New("userId must be a positive integer string")
	ErrMissingUniverseID     = errors.New("universeId must not be empty")
	ErrMissingAssetID        = errors.New("assetId must not be empty")
	ErrMissingJobID          = errors.New("jobId must not be empty")
	ErrMissingCredential     = errors.New("x-cloud-api-key header is required")
	ErrInvalidDelayTimestamp = errors.New("delayTimestamp must be epoch milliseconds or RFC 3339")
	ErrDelayInPast           = errors.New("delay timestamp is in the past")
	ErrRateLimited           = errors.New("too many requests for this client")
	ErrStoreUnavailable      = errors.New("job store unavailable")
)
