package decl

import (
	"fmt"
	"strings"

	"github.com/wippyai/effectgen/effect"
	"github.com/wippyai/effectgen/errors"
)

// ID identifies a declaration within a model: "File", "Read",
// "impl Read for File", "File::open", "<File as Read>::read".
type ID string

// NoID is the zero sentinel.
const NoID ID = ""

func (id ID) IsValid() bool { return id != NoID }

// Kind tags the declaration variant.
type Kind int

const (
	KindType Kind = iota
	KindTrait
	KindImpl
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindTrait:
		return "trait"
	case KindImpl:
		return "impl"
	case KindFunction:
		return "fn"
	}
	return "unknown"
}

// Mode says how a type expression binds one effect of the referenced declaration.
type Mode int

const (
	ModePresent Mode = iota // T<async>
	ModeAbsent              // T<!async>
	ModeInherit             // T<maybe(async)>
)

// EffectArg is one effect argument of a type expression or call site.
type EffectArg struct {
	Kind effect.Kind
	Mode Mode
}

func (a EffectArg) String() string {
	switch a.Mode {
	case ModeAbsent:
		return "!" + string(a.Kind)
	case ModeInherit:
		return "maybe(" + string(a.Kind) + ")"
	}
	return string(a.Kind)
}

// Partial converts concrete arguments into a partial assignment over set.
// Inherit arguments are skipped.
func Partial(args []EffectArg, set effect.Set) (effect.Partial, error) {
	p := effect.NewPartial(set)
	for _, a := range args {
		if a.Mode == ModeInherit {
			continue
		}
		next, err := p.With(a.Kind, a.Mode == ModePresent)
		if err != nil {
			return p, err
		}
		p = next
	}
	return p, nil
}

var primitives = map[string]bool{
	"bool": true, "char": true, "string": true,
	"u8": true, "u16": true, "u32": true, "u64": true,
	"s8": true, "s16": true, "s32": true, "s64": true,
	"f32": true, "f64": true,
}

var constructors = map[string]int{
	"list":   1,
	"option": 1,
	"future": 1,
	"own":    1,
	"borrow": 1,
	"result": -2, // one or two arguments
	"tuple":  -1, // any number
}

// ReservedField is the field name taken by the capability slot of
// lowered types.
const ReservedField = "fields"

// SelfType names the enclosing type inside impl and method signatures.
const SelfType = "Self"

func IsPrimitive(name string) bool { return primitives[name] }

func IsConstructor(name string) bool {
	_, ok := constructors[name]
	return ok
}

// TypeExpr is a field, associated-item or signature type. Constructors
// (list, option, ...) take type arguments; references to declarations take
// effect arguments.
type TypeExpr struct {
	Name    string
	Args    []TypeExpr
	Effects []EffectArg
}

func Named(name string, effects ...EffectArg) TypeExpr {
	return TypeExpr{Name: name, Effects: effects}
}

func Ctor(name string, args ...TypeExpr) TypeExpr {
	return TypeExpr{Name: name, Args: args}
}

func (t TypeExpr) IsZero() bool { return t.Name == "" }

// IsReference reports whether t names a declaration or extern rather
// than a primitive or constructor.
func (t TypeExpr) IsReference() bool {
	return !t.IsZero() && !IsPrimitive(t.Name) && !IsConstructor(t.Name)
}

func (t TypeExpr) String() string {
	if t.IsZero() {
		return "()"
	}
	if len(t.Args) == 0 && len(t.Effects) == 0 {
		return t.Name
	}
	parts := make([]string, 0, len(t.Args)+len(t.Effects))
	for _, a := range t.Args {
		parts = append(parts, a.String())
	}
	for _, e := range t.Effects {
		parts = append(parts, e.String())
	}
	return t.Name + "<" + strings.Join(parts, ", ") + ">"
}

// Walk visits t and every nested type argument, depth first.
func (t TypeExpr) Walk(fn func(TypeExpr)) {
	fn(t)
	for _, a := range t.Args {
		a.Walk(fn)
	}
}

// InheritedKinds lists the kinds t takes from its enclosing declaration.
func (t TypeExpr) InheritedKinds() []effect.Kind {
	var out []effect.Kind
	t.Walk(func(x TypeExpr) {
		for _, e := range x.Effects {
			if e.Mode == ModeInherit {
				out = append(out, e.Kind)
			}
		}
	})
	return out
}

// IsConcrete reports whether no inherit argument remains.
func (t TypeExpr) IsConcrete() bool {
	return len(t.InheritedKinds()) == 0
}

// Substitute replaces every inherit argument by its value under a.
func (t TypeExpr) Substitute(a effect.Assignment) (TypeExpr, error) {
	out := TypeExpr{Name: t.Name}
	if len(t.Args) > 0 {
		out.Args = make([]TypeExpr, len(t.Args))
		for i, arg := range t.Args {
			sub, err := arg.Substitute(a)
			if err != nil {
				return TypeExpr{}, err
			}
			out.Args[i] = sub
		}
	}
	if len(t.Effects) > 0 {
		out.Effects = make([]EffectArg, len(t.Effects))
		for i, e := range t.Effects {
			if e.Mode != ModeInherit {
				out.Effects[i] = e
				continue
			}
			present, ok := a.Lookup(e.Kind)
			if !ok {
				return TypeExpr{}, fmt.Errorf("%w: %s in %s is not assigned by %s", effect.ErrUnknownKind, e.Kind, t, a)
			}
			mode := ModeAbsent
			if present {
				mode = ModePresent
			}
			out.Effects[i] = EffectArg{Kind: e.Kind, Mode: mode}
		}
	}
	return out, nil
}

// FieldSpec is one field of a Type; Cfg nil means unconditional.
type FieldSpec struct {
	Cfg  effect.Expr
	Type TypeExpr
	Name string
	Span errors.Span
}

// AssocDef is one effect-dependent definition of an associated item.
type AssocDef struct {
	Cfg  effect.Expr
	Type TypeExpr
	Span errors.Span
}

// AssocItem is an associated type of a trait, or its definition in an impl.
// A trait item without definitions must be defined by every impl.
type AssocItem struct {
	Name string
	Defs []AssocDef
	Span errors.Span
}

type Param struct {
	Name string
	Type TypeExpr
}

type Signature struct {
	Params []Param
	Result TypeExpr
}

func (s *Signature) String() string {
	if s == nil {
		return "()"
	}
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Name + ": " + p.Type.String()
	}
	out := "(" + strings.Join(parts, ", ") + ")"
	if !s.Result.IsZero() {
		out += " -> " + s.Result.String()
	}
	return out
}

// Types returns every type expression of the signature.
func (s *Signature) Types() []TypeExpr {
	if s == nil {
		return nil
	}
	out := make([]TypeExpr, 0, len(s.Params)+1)
	for _, p := range s.Params {
		out = append(out, p.Type)
	}
	if !s.Result.IsZero() {
		out = append(out, s.Result)
	}
	return out
}

// CallSite is a use of a possibly effect-generic declaration inside a function body.
type CallSite struct {
	Cfg         effect.Expr // in-body effect branch guarding the call, nil if none
	BindingType *TypeExpr   // declared type of the let binding, if any
	Target      string      // callee path as written: "File::open", "connect"
	Binding     string
	Text        string
	Explicit    []EffectArg // turbofish arguments
	Markers     []string    // postfix markers: "await", "?"
	Span        errors.Span
}

func (c CallSite) String() string {
	if c.Text != "" {
		return c.Text
	}
	return c.Target + "(..)"
}

// LegacyField is one field of a type's pre-generic layout.
type LegacyField struct {
	Name string
	Type TypeExpr
}

// LegacyLayout is the non-generic layout a type had in a released version.
type LegacyLayout struct {
	Version string
	Fields  []LegacyField
	Span    errors.Span
}
