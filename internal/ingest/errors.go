package ingest

import (
	"errors"
	"fmt"
)

// ErrPriceNotFound is returned when the provider has no price for the requested date.
var ErrPriceNotFound = errors.New("price not found")

// DataSourceUnavailableError means the provider could not be reached or refused
// to serve the request (transport failure, rate limiting, server errors).
type DataSourceUnavailableError struct {
	Endpoint   string
	StatusCode int // 0 for transport failures
	Err        error
}

func (e *DataSourceUnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("data source unavailable: %s: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("data source unavailable: %s: %v", e.Endpoint, e.Err)
}

func (e *DataSourceUnavailableError) Unwrap() error { return e.Err }

// retryable reports whether the failure is worth another attempt.
func (e *DataSourceUnavailableError) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// DataFormatError means the provider answered but the payload could not be used.
type DataFormatError struct {
	Endpoint string
	Err      error
}

func (e *DataFormatError) Error() string {
	return fmt.Sprintf("unexpected data format from %s: %v", e.Endpoint, e.Err)
}

func (e *DataFormatError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is (or wraps) a DataSourceUnavailableError.
func IsUnavailable(err error) bool {
	var e *DataSourceUnavailableError
	return errors.As(err, &e)
}

// IsFormat reports whether err is (or wraps) a DataFormatError.
func IsFormat(err error) bool {
	var e *DataFormatError
	return errors.As(err, &e)
}
