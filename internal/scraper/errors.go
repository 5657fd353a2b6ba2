package scraper

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by registry implementations.
var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job transition")
)

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

const (
	FetchErrTimeout    FetchErrorKind = "timeout"
	FetchErrNetwork    FetchErrorKind = "network"
	FetchErrHTTPStatus FetchErrorKind = "http_status"
)

// FetchError reports a failed page retrieval.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FetchErrHTTPStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Transient reports whether retrying the fetch could plausibly succeed.
// Timeouts, network errors, 5xx responses, and 429 are transient; other
// HTTP statuses are not.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case FetchErrTimeout, FetchErrNetwork:
		return true
	case FetchErrHTTPStatus:
		return e.StatusCode >= 500 || e.StatusCode == 429
	default:
		return false
	}
}

// ParseError reports HTML that could not be parsed into a page.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.URL, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ConversionError reports a failed Markdown conversion.
type ConversionError struct {
	URL string
	Err error
}

func (e *ConversionError) Error() string { return fmt.Sprintf("convert %s: %v", e.URL, e.Err) }
func (e *ConversionError) Unwrap() error { return e.Err }

// StorageError reports a failed write of converted output.
type StorageError struct {
	URL string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("store %s: %v", e.URL, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// ValidationError reports rejected job parameters.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// AlreadyRunningError is returned by a non-forced trigger when a job for the
// same root URL is still active.
type AlreadyRunningError struct {
	JobID   string
	RootURL string
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("job %s already active for %s", e.JobID, e.RootURL)
}

// ValidateParameters checks a trigger request before any work starts.
func ValidateParameters(params JobParameters) error {
	if params.URL == "" {
		return &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if _, err := NormalizeURL(params.URL); err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if params.MaxDepth < 0 {
		return &ValidationError{Field: "max_depth", Reason: "must be >= 0"}
	}
	if params.Concurrency < 1 {
		return &ValidationError{Field: "concurrency", Reason: "must be >= 1"}
	}
	if params.RetryAttempts < 0 {
		return &ValidationError{Field: "retry_attempts", Reason: "must be >= 0"}
	}
	return nil
}
