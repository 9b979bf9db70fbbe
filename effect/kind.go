package effect

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateKind = errors.New("duplicate effect kind")
	ErrUnknownKind   = errors.New("unknown effect kind")
	ErrTooManyKinds  = errors.New("too many effect kinds")
	ErrConflict      = errors.New("conflicting effect value")
)

// MaxKinds bounds the number of kinds in one Set so that enumeration
// (2^n assignments) stays tractable.
const MaxKinds = 16

// Kind names one orthogonal boolean capability.
type Kind string

// Async is the capability every registry knows by default.
const Async Kind = "async"

// Def describes a recognized kind. Marker is the call-site suffix that
// implies the kind is present (".await" implies async); it may be empty.
type Def struct {
	Name   Kind
	Marker string
}

// Registry is the finite set of kinds recognized by one compilation unit.
// Read-only after construction.
type Registry struct {
	byName   map[Kind]Def
	byMarker map[string]Kind
	defs     []Def
}

// NewRegistry validates defs and builds a registry.
func NewRegistry(defs ...Def) (*Registry, error) {
	if len(defs) > MaxKinds {
		return nil, fmt.Errorf("%w: %d recognized (max %d)", ErrTooManyKinds, len(defs), MaxKinds)
	}
	r := &Registry{
		byName:   make(map[Kind]Def, len(defs)),
		byMarker: make(map[string]Kind),
		defs:     make([]Def, 0, len(defs)),
	}
	for _, d := range defs {
		if d.Name == "" || strings.ContainsAny(string(d.Name), " ,<>()!=") {
			return nil, fmt.Errorf("invalid effect name %q", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKind, d.Name)
		}
		if d.Marker != "" {
			if other, dup := r.byMarker[d.Marker]; dup {
				return nil, fmt.Errorf("marker %q used by both %s and %s", d.Marker, other, d.Name)
			}
			r.byMarker[d.Marker] = d.Name
		}
		r.byName[d.Name] = d
		r.defs = append(r.defs, d)
	}
	return r, nil
}

// DefaultRegistry recognizes async, implied by the await marker.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(Def{Name: Async, Marker: "await"})
	return r
}

// Has reports whether k is recognized.
func (r *Registry) Has(k Kind) bool {
	_, ok := r.byName[k]
	return ok
}

// ByMarker returns the kind implied by a call-site marker.
func (r *Registry) ByMarker(marker string) (Kind, bool) {
	k, ok := r.byMarker[marker]
	return k, ok
}

// Defs returns the recognized kinds in declaration order.
func (r *Registry) Defs() []Def {
	out := make([]Def, len(r.defs))
	copy(out, r.defs)
	return out
}

// Kinds returns the recognized kind names in declaration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.defs))
	for i, d := range r.defs {
		out[i] = d.Name
	}
	return out
}
