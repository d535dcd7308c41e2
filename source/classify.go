package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"syscall"

	"github.com/justapithecus/pulse/types"
)

// Classify maps any adapter error into the fetch error taxonomy.
// Returns nil if err is nil. Classification uses error types only:
//   - an existing *types.FetchError is returned unchanged if its kind is known
//   - a *types.FetchError with an unknown kind becomes unexpected
//   - context deadline/cancel and net timeouts become timeout
//   - dial, DNS, reset and truncated-stream errors become network
//   - everything else becomes unexpected
func Classify(err error) *types.FetchError {
	if err == nil {
		return nil
	}

	var fe *types.FetchError
	if errors.As(err, &fe) {
		switch {
		case fe == nil:
			return types.Unexpected("nil fetch error", nil)
		case !fe.Kind.Valid():
			return types.Unexpected(fmt.Sprintf("unknown error kind %q: %s", fe.Kind, fe.Message), fe)
		}
		return fe
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &types.FetchError{Kind: types.KindTimeout, Message: "deadline exceeded", Err: err}
	}

	var timeoutErr interface{ Timeout() bool }
	if errors.As(err, &timeoutErr) && timeoutErr.Timeout() {
		return &types.FetchError{Kind: types.KindTimeout, Message: "i/o timeout", Err: err}
	}

	if isNetworkError(err) {
		return types.Network(err.Error(), err)
	}

	return types.Unexpected(err.Error(), err)
}

func isNetworkError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	return false
}
