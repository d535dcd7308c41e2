// Package iox holds cleanup helpers for closers whose errors nobody can act on.
package iox

import "io"

// DiscardClose closes c and drops the error. For defers on response
// bodies, stores and the like:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup registration.
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and drops its error (logger Sync, Flush).
func DiscardErr(fn func() error) { _ = fn() }
