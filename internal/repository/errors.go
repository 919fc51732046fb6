package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the document was fetched but the element is absent.
	ErrNotFound = errors.New("element not found")

	// ErrNoToken means an authenticated lookup was skipped because no
	// bearer token is configured.
	ErrNoToken = errors.New("no bearer token configured")
)

// MalformedResponseError indicates a response body that is not XML.
type MalformedResponseError struct {
	Op   string
	Body []byte
	Err  error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// MissingAttributeError indicates a required attribute is absent.
type MissingAttributeError struct {
	Attr string
}

func (e *MissingAttributeError) Error() string {
	return fmt.Sprintf("missing attribute %q", e.Attr)
}

// LookupError indicates a non-200 response.
type LookupError struct {
	Op         string
	URL        string
	StatusCode int
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %s returned %d", e.Op, e.URL, e.StatusCode)
}
