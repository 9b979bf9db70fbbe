package effect

import (
	"fmt"
	"strings"
)

// Assignment maps every kind of its Set to present or absent.
// Bit i of the mask is the value of the i-th kind of the Set.
type Assignment struct {
	set  Set
	bits uint32
}

// AllAbsent returns the assignment with no effect active.
func AllAbsent(s Set) Assignment {
	return Assignment{set: s}
}

// Of returns the assignment of s where exactly the given kinds are present.
// Kinds outside s are ignored.
func Of(s Set, present ...Kind) Assignment {
	a := Assignment{set: s}
	for _, k := range present {
		if i := s.Index(k); i >= 0 {
			a.bits |= 1 << uint(i)
		}
	}
	return a
}

// FromMap builds an assignment; every kind of s must be mapped.
func FromMap(s Set, values map[Kind]bool) (Assignment, error) {
	a := Assignment{set: s}
	for i, k := range s.kinds {
		v, ok := values[k]
		if !ok {
			return Assignment{}, fmt.Errorf("%w: %s is unmapped", ErrUnknownKind, k)
		}
		if v {
			a.bits |= 1 << uint(i)
		}
	}
	for k := range values {
		if !s.Contains(k) {
			return Assignment{}, fmt.Errorf("%w: %s", ErrUnknownKind, k)
		}
	}
	return a, nil
}

// Enumerate returns all 2^n assignments of s; the all-absent assignment is first.
func Enumerate(s Set) []Assignment {
	n := uint32(1) << uint(s.Len())
	out := make([]Assignment, 0, n)
	for bits := uint32(0); bits < n; bits++ {
		out = append(out, Assignment{set: s, bits: bits})
	}
	return out
}

func (a Assignment) Set() Set { return a.set }

// Lookup returns the value of k and whether k belongs to the assignment's set.
func (a Assignment) Lookup(k Kind) (present bool, ok bool) {
	i := a.set.Index(k)
	if i < 0 {
		return false, false
	}
	return a.bits&(1<<uint(i)) != 0, true
}

// Has reports whether k is present. Kinds outside the set are absent.
func (a Assignment) Has(k Kind) bool {
	v, _ := a.Lookup(k)
	return v
}

func (a Assignment) IsAllAbsent() bool { return a.bits == 0 }

// Present lists the present kinds in set order.
func (a Assignment) Present() []Kind {
	var out []Kind
	for i, k := range a.set.kinds {
		if a.bits&(1<<uint(i)) != 0 {
			out = append(out, k)
		}
	}
	return out
}

// Equal reports whether both assignments map the same kinds to the same values.
func (a Assignment) Equal(b Assignment) bool {
	if !a.set.Equal(b.set) {
		return false
	}
	for _, k := range a.set.kinds {
		if a.Has(k) != b.Has(k) {
			return false
		}
	}
	return true
}

// Project restricts a to the kinds of sub. It fails if sub has a kind a does not map.
func (a Assignment) Project(sub Set) (Assignment, bool) {
	out := Assignment{set: sub}
	for i, k := range sub.kinds {
		v, ok := a.Lookup(k)
		if !ok {
			return Assignment{}, false
		}
		if v {
			out.bits |= 1 << uint(i)
		}
	}
	return out, true
}

// Partial converts a into a Partial over set, knowing every kind shared with a.
func (a Assignment) Partial(set Set) Partial {
	p := NewPartial(set)
	for i, k := range set.kinds {
		if v, ok := a.Lookup(k); ok {
			p.known |= 1 << uint(i)
			if v {
				p.vals |= 1 << uint(i)
			}
		}
	}
	return p
}

// Key is the canonical form used for cache keys: kinds in set order,
// absent kinds prefixed with '!', comma separated.
func (a Assignment) Key() string {
	if a.set.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, k := range a.set.kinds {
		if i > 0 {
			b.WriteByte(',')
		}
		if a.bits&(1<<uint(i)) == 0 {
			b.WriteByte('!')
		}
		b.WriteString(string(k))
	}
	return b.String()
}

// String renders the assignment as type arguments, e.g. <async, !const>.
func (a Assignment) String() string {
	return "<" + strings.ReplaceAll(a.Key(), ",", ", ") + ">"
}

// Partial is a possibly incomplete assignment over a Set.
type Partial struct {
	set   Set
	known uint32
	vals  uint32
}

func NewPartial(s Set) Partial { return Partial{set: s} }

func (p Partial) Set() Set { return p.set }

// With returns p extended with k=v. Setting a known kind to a different
// value is an ErrConflict; setting it to the same value is a no-op.
func (p Partial) With(k Kind, v bool) (Partial, error) {
	i := p.set.Index(k)
	if i < 0 {
		return p, fmt.Errorf("%w: %s not in %s", ErrUnknownKind, k, p.set)
	}
	bit := uint32(1) << uint(i)
	if p.known&bit != 0 {
		if (p.vals&bit != 0) != v {
			return p, fmt.Errorf("%w: %s", ErrConflict, k)
		}
		return p, nil
	}
	p.known |= bit
	if v {
		p.vals |= bit
	}
	return p, nil
}

// Lookup returns the value of k and whether it is known.
func (p Partial) Lookup(k Kind) (value bool, known bool) {
	i := p.set.Index(k)
	if i < 0 {
		return false, false
	}
	bit := uint32(1) << uint(i)
	return p.vals&bit != 0, p.known&bit != 0
}

func (p Partial) Known() []Kind {
	var out []Kind
	for i, k := range p.set.kinds {
		if p.known&(1<<uint(i)) != 0 {
			out = append(out, k)
		}
	}
	return out
}

func (p Partial) Unknown() []Kind {
	var out []Kind
	for i, k := range p.set.kinds {
		if p.known&(1<<uint(i)) == 0 {
			out = append(out, k)
		}
	}
	return out
}

func (p Partial) IsEmpty() bool { return p.known == 0 }

// Complete returns the assignment if every kind is known.
func (p Partial) Complete() (Assignment, bool) {
	full := uint32(1)<<uint(p.set.Len()) - 1
	if p.known != full {
		return Assignment{}, false
	}
	return Assignment{set: p.set, bits: p.vals}, true
}

// Candidates lists every assignment consistent with p, in Enumerate order.
func (p Partial) Candidates() []Assignment {
	var out []Assignment
	for _, a := range Enumerate(p.set) {
		if a.bits&p.known == p.vals&p.known {
			out = append(out, a)
		}
	}
	return out
}

// String renders known kinds like Assignment and unknown kinds with '?'.
func (p Partial) String() string {
	parts := make([]string, 0, p.set.Len())
	for i, k := range p.set.kinds {
		bit := uint32(1) << uint(i)
		switch {
		case p.known&bit == 0:
			parts = append(parts, "?"+string(k))
		case p.vals&bit == 0:
			parts = append(parts, "!"+string(k))
		default:
			parts = append(parts, string(k))
		}
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// Extend maps a onto s: kinds a assigns keep their value, kinds a does
// not know are absent.
func (a Assignment) Extend(s Set) Assignment {
	out := Assignment{set: s}
	for i, k := range s.kinds {
		if a.Has(k) {
			out.bits |= 1 << uint(i)
		}
	}
	return out
}
