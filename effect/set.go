package effect

import (
	"fmt"
	"strings"
)

// Set is an ordered, duplicate-free set of kinds. The zero value is the empty set.
type Set struct {
	kinds []Kind
}

// NewSet builds a Set preserving the given order.
func NewSet(kinds ...Kind) (Set, error) {
	if len(kinds) > MaxKinds {
		return Set{}, fmt.Errorf("%w: %d kinds (max %d)", ErrTooManyKinds, len(kinds), MaxKinds)
	}
	seen := make(map[Kind]bool, len(kinds))
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			return Set{}, fmt.Errorf("%w: %s", ErrDuplicateKind, k)
		}
		seen[k] = true
		out = append(out, k)
	}
	return Set{kinds: out}, nil
}

// MustSet is NewSet for statically known kinds. It panics on error.
func MustSet(kinds ...Kind) Set {
	s, err := NewSet(kinds...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s Set) Len() int { return len(s.kinds) }

func (s Set) IsEmpty() bool { return len(s.kinds) == 0 }

// Kinds returns a copy of the kinds in order.
func (s Set) Kinds() []Kind {
	out := make([]Kind, len(s.kinds))
	copy(out, s.kinds)
	return out
}

// Index returns the position of k, or -1.
func (s Set) Index(k Kind) int {
	for i, x := range s.kinds {
		if x == k {
			return i
		}
	}
	return -1
}

func (s Set) Contains(k Kind) bool { return s.Index(k) >= 0 }

// IsSubsetOf ignores order.
func (s Set) IsSubsetOf(other Set) bool {
	for _, k := range s.kinds {
		if !other.Contains(k) {
			return false
		}
	}
	return true
}

// Equal compares membership, ignoring order.
func (s Set) Equal(other Set) bool {
	return s.Len() == other.Len() && s.IsSubsetOf(other)
}

// Union keeps the order of s, then appends kinds only in other.
func (s Set) Union(other Set) Set {
	out := s.Kinds()
	for _, k := range other.kinds {
		if !s.Contains(k) {
			out = append(out, k)
		}
	}
	return Set{kinds: out}
}

// Minus returns the kinds of s not in other, in s order.
func (s Set) Minus(other Set) Set {
	var out []Kind
	for _, k := range s.kinds {
		if !other.Contains(k) {
			out = append(out, k)
		}
	}
	return Set{kinds: out}
}

func (s Set) String() string {
	parts := make([]string, len(s.kinds))
	for i, k := range s.kinds {
		parts[i] = string(k)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
