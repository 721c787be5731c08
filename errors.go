package sqsrepo

import "errors"

var (
	// ErrNotInitialized is returned when a [Session] is used before
	// [Session.Init] has completed successfully.
	ErrNotInitialized = errors.New("SQS session not initialized")

	// ErrUnsupportedRegion is returned when the configured AWS region is not
	// one of [SupportedRegions].
	ErrUnsupportedRegion = errors.New("AWS region not supported")

	// ErrDeleteRetryExhausted is returned, wrapped, when receipt handles are
	// still rejected after the configured number of delete retries. The
	// accompanying result lists the remaining handles in Failed.
	ErrDeleteRetryExhausted = errors.New("delete retries exhausted")
)
