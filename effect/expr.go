package effect

import (
	"fmt"
	"strings"
)

// Expr is a predicate over an Assignment, the parsed form of #[cfg(...)].
// A nil Expr means "always".
type Expr interface {
	Eval(a Assignment) bool
	Kinds() []Kind
	String() string
}

// Is holds when Kind is present: effect = async.
type Is struct {
	Kind Kind
}

func (e Is) Eval(a Assignment) bool { return a.Has(e.Kind) }
func (e Is) Kinds() []Kind          { return []Kind{e.Kind} }
func (e Is) String() string         { return "effect = " + string(e.Kind) }

// Not negates X.
type Not struct {
	X Expr
}

func (e Not) Eval(a Assignment) bool { return !e.X.Eval(a) }
func (e Not) Kinds() []Kind          { return e.X.Kinds() }
func (e Not) String() string         { return "not(" + e.X.String() + ")" }

// All is a conjunction; the empty conjunction holds.
type All []Expr

func (e All) Eval(a Assignment) bool {
	for _, x := range e {
		if !x.Eval(a) {
			return false
		}
	}
	return true
}

func (e All) Kinds() []Kind  { return kindsOf(e) }
func (e All) String() string { return "all(" + joinExprs(e) + ")" }

// Any is a disjunction; the empty disjunction never holds.
type Any []Expr

func (e Any) Eval(a Assignment) bool {
	for _, x := range e {
		if x.Eval(a) {
			return true
		}
	}
	return false
}

func (e Any) Kinds() []Kind  { return kindsOf(e) }
func (e Any) String() string { return "any(" + joinExprs(e) + ")" }

func kindsOf(xs []Expr) []Kind {
	var out []Kind
	seen := make(map[Kind]bool)
	for _, x := range xs {
		for _, k := range x.Kinds() {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

func joinExprs(xs []Expr) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = x.String()
	}
	return strings.Join(parts, ", ")
}

// Eval evaluates e, treating nil as always true.
func Eval(e Expr, a Assignment) bool {
	if e == nil {
		return true
	}
	return e.Eval(a)
}

// Format renders e in attribute form; nil renders as the empty string.
func Format(e Expr) string {
	if e == nil {
		return ""
	}
	return "#[cfg(" + e.String() + ")]"
}

// Check reports kinds referenced by e that s does not contain. A predicate
// that passes Check is total over Enumerate(s).
func Check(e Expr, s Set) error {
	if e == nil {
		return nil
	}
	var missing []string
	for _, k := range e.Kinds() {
		if !s.Contains(k) {
			missing = append(missing, string(k))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: predicate %q references %s outside %s",
			ErrUnknownKind, e.String(), strings.Join(missing, ", "), s)
	}
	return nil
}

// Satisfiable reports whether e holds under some assignment of s.
func Satisfiable(e Expr, s Set) bool {
	for _, a := range Enumerate(s) {
		if Eval(e, a) {
			return true
		}
	}
	return false
}

// Tautology reports whether e holds under every assignment of s.
func Tautology(e Expr, s Set) bool {
	for _, a := range Enumerate(s) {
		if !Eval(e, a) {
			return false
		}
	}
	return true
}

// Overlap returns an assignment of s under which both a and b hold.
func Overlap(a, b Expr, s Set) (Assignment, bool) {
	for _, asg := range Enumerate(s) {
		if Eval(a, asg) && Eval(b, asg) {
			return asg, true
		}
	}
	return Assignment{}, false
}
