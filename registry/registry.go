// Package registry maps view identifiers to the sources that produce them
// and resolves caller selections against that mapping.
//
// A Registry is built once and never changes; iteration order is
// registration order, which makes every listing and every resolved
// selection deterministic.
package registry

import (
	"errors"
	"fmt"

	"github.com/agnivade/levenshtein"

	"github.com/justapithecus/pulse/source"
	"github.com/justapithecus/pulse/types"
)

// ErrUnknownView is matched by *UnknownViewError via errors.Is.
var ErrUnknownView = errors.New("unknown view")

// UnknownViewError reports a view identifier that is not registered.
type UnknownViewError struct {
	View types.ViewID
	// Suggestion is the closest registered identifier, if any is close.
	Suggestion types.ViewID
}

func (e *UnknownViewError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown view %q (did you mean %q?)", e.View, e.Suggestion)
	}
	return fmt.Sprintf("unknown view %q", e.View)
}

// Is reports whether target is ErrUnknownView.
func (e *UnknownViewError) Is(target error) bool {
	return target == ErrUnknownView
}

// Entry registers one view.
type Entry struct {
	ID    types.ViewID
	Title string
	// Service names the upstream (e.g. "github"). Informational.
	Service string
	// Source produces the view's data.
	Source source.Source
	// Enabled marks the view as part of the default selection.
	Enabled bool
	// Configured is false when Source is a placeholder for missing credentials.
	Configured bool
}

// Registry is an immutable ordered mapping from view to source.
type Registry struct {
	entries []Entry
	index   map[types.ViewID]int
}

// New builds a Registry. Empty or duplicate identifiers and nil sources
// are rejected.
func New(entries ...Entry) (*Registry, error) {
	r := &Registry{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[types.ViewID]int, len(entries)),
	}
	for i, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("entry %d: empty view id", i)
		}
		if e.Source == nil {
			return nil, fmt.Errorf("view %s: nil source", e.ID)
		}
		if _, dup := r.index[e.ID]; dup {
			return nil, fmt.Errorf("view %s: registered twice", e.ID)
		}
		if e.Title == "" {
			e.Title = string(e.ID)
		}
		r.index[e.ID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r, nil
}

// ViewIDs returns every registered identifier in registration order.
func (r *Registry) ViewIDs() []types.ViewID {
	ids := make([]types.ViewID, len(r.entries))
	for i, e := range r.entries {
		ids[i] = e.ID
	}
	return ids
}

// AdapterFor returns the source registered for id.
func (r *Registry) AdapterFor(id types.ViewID) (source.Source, error) {
	e, err := r.entry(id)
	if err != nil {
		return nil, err
	}
	return e.Source, nil
}

// Entry returns the registration for id.
func (r *Registry) Entry(id types.ViewID) (Entry, error) {
	return r.entry(id)
}

// Entries returns a copy of every registration in order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// DefaultEnabled reports whether id is part of the default selection.
// Unknown identifiers are not enabled.
func (r *Registry) DefaultEnabled(id types.ViewID) bool {
	i, ok := r.index[id]
	return ok && r.entries[i].Enabled
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id types.ViewID) bool {
	_, ok := r.index[id]
	return ok
}

// Len returns the number of registered views.
func (r *Registry) Len() int {
	return len(r.entries)
}

func (r *Registry) entry(id types.ViewID) (Entry, error) {
	i, ok := r.index[id]
	if !ok {
		return Entry{}, r.unknown(id)
	}
	return r.entries[i], nil
}

// maxSuggestDistance bounds how far a typo may be from a registered id.
const maxSuggestDistance = 3

func (r *Registry) unknown(id types.ViewID) *UnknownViewError {
	err := &UnknownViewError{View: id}
	best := maxSuggestDistance + 1
	for _, e := range r.entries {
		if d := levenshtein.ComputeDistance(string(id), string(e.ID)); d < best {
			best = d
			err.Suggestion = e.ID
		}
	}
	return err
}
