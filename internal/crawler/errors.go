package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageFault is returned when the page store cannot be opened or migrated.
	ErrStorageFault = errors.New("storage fault")
	// ErrDuplicateURL is returned when inserting a URL that already exists.
	ErrDuplicateURL = errors.New("duplicate url")
	// ErrPageNotFound is returned when an operation targets an unknown page id.
	ErrPageNotFound = errors.New("page not found")
	// ErrNotLeasable is returned when a page cannot be leased.
	ErrNotLeasable = errors.New("page not leasable")
)

// FailureKind classifies why a page could not be turned into a Document.
type FailureKind string

// Failure kinds produced by the classifier.
const (
	NotHTML          FailureKind = "not_html"
	TransportFailure FailureKind = "transport_failure"
	BadStatus        FailureKind = "bad_status"
	InvalidURL       FailureKind = "invalid_url"
)

// Sentinel contents recorded in place of a page body.
const (
	SentinelNotHTML = "NOT HTML"
	SentinelError   = "ERROR"
)

// Sentinel returns the content marker stored for this failure kind.
func (k FailureKind) Sentinel() string {
	if k == NotHTML {
		return SentinelNotHTML
	}
	return SentinelError
}

// Retryable reports whether the failure may succeed on a later attempt.
func (k FailureKind) Retryable() bool {
	return k == TransportFailure || k == BadStatus
}

// FetchError is a classified fetch failure.
type FetchError struct {
	Kind       FailureKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError extracts a *FetchError from err.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// IsFailureKind reports whether err is a FetchError of the given kind.
func IsFailureKind(err error, kind FailureKind) bool {
	fe, ok := AsFetchError(err)
	return ok && fe.Kind == kind
}

// StorageFault wraps err as an ErrStorageFault with context.
func StorageFault(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFault, op, err)
}
