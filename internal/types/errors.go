package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrDuplicate     = errors.New("duplicate URL")
	ErrEmptyResponse = errors.New("empty response body")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrNoBody        = errors.New("no body available")
	ErrNotFresh      = errors.New("index is not fresh for this cycle")
	ErrUnknownRegion = errors.New("unknown region")
)

// FetchError wraps errors that occur during fetching.
// StatusCode is zero for network-level failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	RetryAfter time.Duration // populated from Retry-After header on HTTP 429
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// ParseError wraps errors that occur while extracting fields from a page or payload.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// LookupError reports a free-text value that did not resolve to a region code.
type LookupError struct {
	Value string
	Err   error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup error for %q: %v", e.Value, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// HelperError wraps failures of an external body extractor.
type HelperError struct {
	URL      string
	Helper   string
	ExitCode int
	Err      error
}

func (e *HelperError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("helper %s failed for %s (exit %d): %v", e.Helper, e.URL, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("helper %s failed for %s: %v", e.Helper, e.URL, e.Err)
}

func (e *HelperError) Unwrap() error { return e.Err }

// ConfigError reports missing or invalid configuration. It is the only error
// kind that aborts a whole run.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config error: %v", e.Err)
	}
	return fmt.Sprintf("config error (%s): %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(key, format string, args ...any) *ConfigError {
	return &ConfigError{Key: key, Err: fmt.Errorf(format, args...)}
}

// StorageError wraps errors that occur in the persistence layer.
type StorageError struct {
	Backend string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s %s): %v", e.Backend, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the record pipeline.
type PipelineError struct {
	Stage string
	URL   string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q for %s: %v", e.Stage, e.URL, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// IsStatusError reports whether err is a fetch that reached the origin but got
// a non-success status.
func IsStatusError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode > 0
}

// IsNetworkError reports whether err is a fetch that never got a response
// (DNS, connection, timeout).
func IsNetworkError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.StatusCode == 0
}

// IsConfigError reports whether err is fatal configuration trouble.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsCanceled reports whether err stems from context cancellation or deadline.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
