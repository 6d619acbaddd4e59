package feed

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a crawl failure for backoff accounting. Both
// kinds count toward the consecutive-failure threshold; the distinction
// exists for logging and for operators inspecting a struggling feed.
type FailureKind string

const (
	FailureTransient FailureKind = "transient"
	FailurePermanent FailureKind = "permanent"
)

// FetchError is a classified fetch failure.
type FetchError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch failed (%s, HTTP %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError marks a feed payload that could not be parsed at all.
// Parse failures never touch previously ingested catalog data.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ClassifyFailure maps any crawl-path error to a failure kind. Unknown
// errors (store faults included) are treated as transient so they retry
// via backoff rather than pushing a show toward disablement.
func ClassifyFailure(err error) FailureKind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}

	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return FailurePermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTransient
	}

	return FailureTransient
}
