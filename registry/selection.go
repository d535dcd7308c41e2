package registry

import (
	"errors"
	"strings"

	"github.com/justapithecus/pulse/types"
)

// Mode is the kind of a Selection.
type Mode int

// Selection modes.
const (
	ModeEnabled Mode = iota
	ModeAll
	ModeOnly
	ModeExcept
)

func (m Mode) String() string {
	switch m {
	case ModeAll:
		return "all"
	case ModeOnly:
		return "only"
	case ModeExcept:
		return "except"
	default:
		return "enabled"
	}
}

// Selection describes which views a run should fetch. The zero value is
// Enabled().
type Selection struct {
	mode  Mode
	views []types.ViewID
}

// All selects every registered view.
func All() Selection { return Selection{mode: ModeAll} }

// Enabled selects every view registered as enabled by default.
func Enabled() Selection { return Selection{mode: ModeEnabled} }

// Only selects exactly the given views, in registry order.
func Only(ids ...types.ViewID) Selection {
	return Selection{mode: ModeOnly, views: append([]types.ViewID(nil), ids...)}
}

// Except selects every registered view but the given ones.
func Except(ids ...types.ViewID) Selection {
	return Selection{mode: ModeExcept, views: append([]types.ViewID(nil), ids...)}
}

// Mode returns the selection mode.
func (s Selection) Mode() Mode { return s.mode }

// Views returns the views named by Only or Except.
func (s Selection) Views() []types.ViewID {
	return append([]types.ViewID(nil), s.views...)
}

// Resolve turns the selection into concrete view identifiers in registry
// order. Any named view that is not registered fails with
// *UnknownViewError. An empty result is valid.
func (s Selection) Resolve(r *Registry) ([]types.ViewID, error) {
	for _, id := range s.views {
		if !r.Contains(id) {
			return nil, r.unknown(id)
		}
	}

	named := make(map[types.ViewID]struct{}, len(s.views))
	for _, id := range s.views {
		named[id] = struct{}{}
	}

	out := make([]types.ViewID, 0, r.Len())
	for _, e := range r.entries {
		_, isNamed := named[e.ID]
		switch s.mode {
		case ModeAll:
		case ModeOnly:
			if !isNamed {
				continue
			}
		case ModeExcept:
			if isNamed {
				continue
			}
		default:
			if !e.Enabled {
				continue
			}
		}
		out = append(out, e.ID)
	}
	return out, nil
}

// ErrConflictingSelection is returned when more than one selection flag is set.
var ErrConflictingSelection = errors.New("--only, --except and --all are mutually exclusive")

// ParseSelection builds a Selection from command-line style inputs. Blank
// entries are ignored. With nothing set the result is Enabled().
func ParseSelection(only, except []string, all bool) (Selection, error) {
	onlyIDs := cleanIDs(only)
	exceptIDs := cleanIDs(except)

	set := 0
	if len(onlyIDs) > 0 {
		set++
	}
	if len(exceptIDs) > 0 {
		set++
	}
	if all {
		set++
	}
	if set > 1 {
		return Selection{}, ErrConflictingSelection
	}

	switch {
	case all:
		return All(), nil
	case len(onlyIDs) > 0:
		return Only(onlyIDs...), nil
	case len(exceptIDs) > 0:
		return Except(exceptIDs...), nil
	default:
		return Enabled(), nil
	}
}

func cleanIDs(raw []string) []types.ViewID {
	ids := make([]types.ViewID, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			ids = append(ids, types.ViewID(s))
		}
	}
	return ids
}
