// Package errors provides structured error handling for ratecore.
//
// It defines a standard AppError type built on top of github.com/agilira/
// go-errors: an error code, a human message, an optional cause, and a
// retryable flag. The rate-limiting core raises exactly three kinds of
// error, distinguished by code: ConfigError (fatal at construction),
// StorageError (raised by the stores, handled by the engine's failover
// state machine), and RateLimitExceeded (a carrier the engine may return
// alongside its decision tuple).
package errors

import (
	goerrors "github.com/agilira/go-errors"
)

// Error codes for ratecore operations.
const (
	CodeConfig        goerrors.ErrorCode = "RATECORE_CONFIG_ERROR"
	CodeStorage       goerrors.ErrorCode = "RATECORE_STORAGE_ERROR"
	CodeLimitExceeded goerrors.ErrorCode = "RATECORE_LIMIT_EXCEEDED"
	CodeClosed        goerrors.ErrorCode = "RATECORE_ENGINE_CLOSED"
)

// NewConfigError reports a malformed limit spec or unknown strategy found
// at construction time. It is never raised from Engine.Check.
func NewConfigError(msg string, field string, value interface{}) error {
	return goerrors.NewWithContext(CodeConfig, msg, map[string]interface{}{
		"field": field,
		"value": value,
	})
}

// NewStorageError wraps a transport, encoding, or server-side script
// failure. Storage errors are retryable by definition — the engine decides
// whether to retry against the fallback store or fail open.
func NewStorageError(cause error, msg string) error {
	return goerrors.Wrap(cause, CodeStorage, msg).AsRetryable()
}

// NewClosedError is returned by Check after Close has drained the stores.
func NewClosedError() error {
	return goerrors.New(CodeClosed, "ratecore: engine is closed")
}

// IsStorageError reports whether err (or any error it wraps) is a
// StorageError raised by a Store implementation.
func IsStorageError(err error) bool {
	return goerrors.HasCode(err, CodeStorage)
}

// IsClosedError reports whether err is the error returned by Check after
// the engine has been closed.
func IsClosedError(err error) bool {
	return goerrors.HasCode(err, CodeClosed)
}

// AppError is the concrete structured error type, re-exported so callers
// outside this module don't need to import go-errors directly.
type AppError = goerrors.Error
