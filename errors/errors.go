package errors

import (
	"fmt"
	"strings"
)

// Phase indicates which pass produced the error
type Phase string

const (
	PhaseLoad      Phase = "load"      // manifest loading
	PhaseParse     Phase = "parse"     // annotation grammar
	PhaseModel     Phase = "model"     // declaration model construction
	PhaseFields    Phase = "fields"    // conditional field resolution
	PhasePropagate Phase = "propagate" // effect parameter propagation
	PhaseLower     Phase = "lower"     // monomorphization
	PhaseABI       Phase = "abi"       // layout compatibility
	PhaseResolve   Phase = "resolve"   // call-site resolution
)

// Kind categorizes the error
type Kind string

const (
	KindDeclaration              Kind = "declaration"
	KindConflictingFieldCfg      Kind = "conflicting_field_cfg"
	KindEffectMismatch           Kind = "effect_mismatch"
	KindPropagationCycle         Kind = "propagation_cycle"
	KindUnresolvedEffectVariant  Kind = "unresolved_effect_variant"
	KindLayoutMismatch           Kind = "layout_mismatch"
	KindAmbiguousEffectInference Kind = "ambiguous_effect_inference"
	KindDeadField                Kind = "dead_field"
	KindInvalidInput             Kind = "invalid_input"
	KindNotFound                 Kind = "not_found"
	KindInvalidData              Kind = "invalid_data"
)

// Severity separates fatal diagnostics from advisory ones
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// Severity returns the severity diagnostics of this kind carry.
func (k Kind) Severity() Severity {
	if k == KindDeadField {
		return SeverityWarning
	}
	return SeverityError
}

// Span locates a diagnostic in its source
type Span struct {
	File string
	Line int
	Col  int
}

func (s Span) IsValid() bool { return s.Line > 0 }

func (s Span) String() string {
	if !s.IsValid() {
		return s.File
	}
	file := s.File
	if file == "" {
		file = "<input>"
	}
	if s.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", file, s.Line, s.Col)
	}
	return fmt.Sprintf("%s:%d", file, s.Line)
}

// Error is the structured diagnostic used throughout the engine
type Error struct {
	Value       any
	Cause       error
	Phase       Phase
	Kind        Kind
	Decl        string // declaration identity
	Rule        string // validation rule that fired
	Detail      string
	Span        Span
	Path        []string // e.g. field or associated item inside Decl
	Assignments []string // conflicting assignments
	Candidates  []string // assignments consistent with partial information
	Effects     []string // unresolved effect kinds
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Span.IsValid() {
		b.WriteString(e.Span.String())
		b.WriteString(": ")
	}

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Decl != "" {
		b.WriteString(" in ")
		b.WriteString(e.Decl)
	}
	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}
	if e.Rule != "" {
		b.WriteString(" (")
		b.WriteString(e.Rule)
		b.WriteByte(')')
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if len(e.Effects) > 0 {
		b.WriteString("; unresolved: ")
		b.WriteString(strings.Join(e.Effects, ", "))
	}
	if len(e.Assignments) > 0 {
		b.WriteString("; assignments: ")
		b.WriteString(strings.Join(e.Assignments, " vs "))
	}
	if len(e.Candidates) > 0 {
		b.WriteString("; candidates: ")
		b.WriteString(strings.Join(e.Candidates, ", "))
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Severity reports whether the diagnostic blocks compilation.
func (e *Error) Severity() Severity {
	return e.Kind.Severity()
}

func (e *Error) IsFatal() bool {
	return e.Severity() == SeverityError
}

// HasKind reports whether err or anything it wraps is an *Error of kind k.
func HasKind(err error, k Kind) bool {
	switch x := err.(type) {
	case nil:
		return false
	case *Error:
		if x.Kind == k {
			return true
		}
		return HasKind(x.Cause, k)
	case interface{ Unwrap() []error }:
		for _, inner := range x.Unwrap() {
			if HasKind(inner, k) {
				return true
			}
		}
		return false
	case interface{ Unwrap() error }:
		return HasKind(x.Unwrap(), k)
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// At sets the source span
func (b *Builder) At(span Span) *Builder {
	b.err.Span = span
	return b
}

// Decl sets the declaration identity
func (b *Builder) Decl(id string) *Builder {
	b.err.Decl = id
	return b
}

// Rule names the validation rule that fired
func (b *Builder) Rule(rule string) *Builder {
	b.err.Rule = rule
	return b
}

// Path sets the member path inside the declaration
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Assignments records conflicting assignments
func (b *Builder) Assignments(a ...string) *Builder {
	b.err.Assignments = a
	return b
}

// Candidates records assignments consistent with what is known
func (b *Builder) Candidates(c ...string) *Builder {
	b.err.Candidates = c
	return b
}

// Effects records unresolved effect kinds
func (b *Builder) Effects(k ...string) *Builder {
	b.err.Effects = k
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Convenience constructors for the engine's error taxonomy

// Declaration creates a malformed-declaration error
func Declaration(span Span, decl, rule, detail string) *Error {
	return &Error{
		Phase:  PhaseModel,
		Kind:   KindDeclaration,
		Span:   span,
		Decl:   decl,
		Rule:   rule,
		Detail: detail,
	}
}

// ConflictingFieldCfg creates an ill-formed or self-contradictory predicate error
func ConflictingFieldCfg(span Span, decl string, path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseModel,
		Kind:   KindConflictingFieldCfg,
		Span:   span,
		Decl:   decl,
		Path:   path,
		Detail: detail,
	}
}

// EffectMismatch creates an incompatible-assignment error
func EffectMismatch(phase Phase, span Span, decl, detail string, assignments ...string) *Error {
	return &Error{
		Phase:       phase,
		Kind:        KindEffectMismatch,
		Span:        span,
		Decl:        decl,
		Detail:      detail,
		Assignments: assignments,
	}
}

// PropagationCycle creates a scoping-cycle error; cycle lists the declarations in order
func PropagationCycle(span Span, decl string, cycle []string) *Error {
	return &Error{
		Phase:  PhasePropagate,
		Kind:   KindPropagationCycle,
		Span:   span,
		Decl:   decl,
		Detail: "scoping cycle " + strings.Join(cycle, " -> "),
		Value:  cycle,
	}
}

// UnresolvedEffectVariant creates a missing associated-definition error
func UnresolvedEffectVariant(span Span, decl, item, assignment string) *Error {
	return &Error{
		Phase:       PhaseLower,
		Kind:        KindUnresolvedEffectVariant,
		Span:        span,
		Decl:        decl,
		Path:        []string{item},
		Detail:      fmt.Sprintf("no definition of %s for %s", item, assignment),
		Assignments: []string{assignment},
	}
}

// LayoutMismatch creates a backward-compatibility layout error
func LayoutMismatch(span Span, decl, detail string) *Error {
	return &Error{
		Phase:  PhaseABI,
		Kind:   KindLayoutMismatch,
		Span:   span,
		Decl:   decl,
		Detail: detail,
	}
}

// AmbiguousEffectInference creates an unresolved call-site error
func AmbiguousEffectInference(span Span, decl string, unresolved, candidates []string) *Error {
	return &Error{
		Phase:      PhaseResolve,
		Kind:       KindAmbiguousEffectInference,
		Span:       span,
		Decl:       decl,
		Detail:     "cannot infer effect assignment",
		Effects:    unresolved,
		Candidates: candidates,
	}
}

// DeadField creates the advisory unsatisfiable-field warning
func DeadField(span Span, decl, field, predicate string) *Error {
	return &Error{
		Phase:  PhaseFields,
		Kind:   KindDeadField,
		Span:   span,
		Decl:   decl,
		Path:   []string{field},
		Detail: fmt.Sprintf("predicate %s is never satisfied; field is excluded from every capability", predicate),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Load creates a manifest loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// ParseFailed creates an annotation parsing error
func ParseFailed(span Span, what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Span:   span,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}
