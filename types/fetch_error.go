package types

import (
	"errors"
	"fmt"
	"time"
)

// FetchErrorKind classifies why a view could not be fetched.
// Every adapter failure is mapped into exactly one kind.
type FetchErrorKind string

// Fetch error kinds.
const (
	KindTimeout      FetchErrorKind = "timeout"
	KindUnauthorized FetchErrorKind = "unauthorized"
	KindRateLimited  FetchErrorKind = "rate_limited"
	KindNetwork      FetchErrorKind = "network"
	KindUnexpected   FetchErrorKind = "unexpected"
)

// FetchErrorKinds lists every kind in display order.
var FetchErrorKinds = []FetchErrorKind{
	KindTimeout,
	KindUnauthorized,
	KindRateLimited,
	KindNetwork,
	KindUnexpected,
}

// Sentinel errors for fetch failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	ErrTimeout      = errors.New("timed out")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrNetwork      = errors.New("network error")
	ErrUnexpected   = errors.New("unexpected error")
)

// Sentinel returns the sentinel error for the kind.
func (k FetchErrorKind) Sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindUnauthorized:
		return ErrUnauthorized
	case KindRateLimited:
		return ErrRateLimited
	case KindNetwork:
		return ErrNetwork
	default:
		return ErrUnexpected
	}
}

// Valid reports whether k is one of the known kinds.
func (k FetchErrorKind) Valid() bool {
	for _, known := range FetchErrorKinds {
		if k == known {
			return true
		}
	}
	return false
}

// FetchError is the failure outcome of one view.
// It preserves the underlying error for errors.As chain traversal.
type FetchError struct {
	// Kind is the classification.
	Kind FetchErrorKind
	// RetryAfter is the upstream backoff hint. Only set for KindRateLimited,
	// and only when the upstream provided one.
	RetryAfter *time.Duration
	// Message is a short human-readable detail, safe to display.
	Message string
	// Err is the underlying error, if any.
	Err error
}

func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RetryAfter != nil {
		msg += fmt.Sprintf(" (retry after %s)", *e.RetryAfter)
	}
	if e.Err != nil && e.Message == "" {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *FetchError) Is(target error) bool {
	return target == e.Kind.Sentinel()
}

// Clone returns a copy of e with its own RetryAfter. The underlying Err is
// shared. Clone of nil is nil.
func (e *FetchError) Clone() *FetchError {
	if e == nil {
		return nil
	}
	c := *e
	if e.RetryAfter != nil {
		d := *e.RetryAfter
		c.RetryAfter = &d
	}
	return &c
}

// Timeout builds a timeout failure.
func Timeout() *FetchError {
	return &FetchError{Kind: KindTimeout, Message: "deadline exceeded"}
}

// Unauthorized builds an authentication/authorization failure.
func Unauthorized(message string) *FetchError {
	return &FetchError{Kind: KindUnauthorized, Message: message}
}

// RateLimited builds a rate-limit failure. retryAfter may be nil.
func RateLimited(retryAfter *time.Duration, message string) *FetchError {
	return &FetchError{Kind: KindRateLimited, RetryAfter: retryAfter, Message: message}
}

// Network builds a transport-level failure.
func Network(message string, err error) *FetchError {
	return &FetchError{Kind: KindNetwork, Message: message, Err: err}
}

// Unexpected builds a failure that fits no other kind.
func Unexpected(message string, err error) *FetchError {
	return &FetchError{Kind: KindUnexpected, Message: message, Err: err}
}
