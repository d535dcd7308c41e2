// Package source defines the capability every dashboard data source
// implements, plus the helpers adapters share: error classification into
// the fetch error taxonomy and a JSON-over-HTTP client.
//
// The aggregator is written once against Source and never sees the
// concrete adapter behind it.
package source

import (
	"context"

	"github.com/justapithecus/pulse/types"
)

// Source fetches the data for one view.
// Implementations must respect ctx cancellation and deadlines on a
// best-effort basis and must be safe to call from multiple runs.
type Source interface {
	Fetch(ctx context.Context) (types.ViewData, error)
}

// Func adapts an ordinary function to Source.
type Func func(ctx context.Context) (types.ViewData, error)

// Fetch calls f(ctx).
func (f Func) Fetch(ctx context.Context) (types.ViewData, error) {
	return f(ctx)
}

// Unconfigured returns a Source that always fails as unauthorized.
// It keeps a view without credentials visible on the dashboard.
func Unconfigured(service string) Source {
	return Func(func(context.Context) (types.ViewData, error) {
		return nil, types.Unauthorized(service + " credentials not configured")
	})
}

// Static returns a Source that always yields data.
func Static(data types.ViewData) Source {
	return Func(func(context.Context) (types.ViewData, error) {
		return data, nil
	})
}
