package errors

import (
	"fmt"
	"sort"
	"strings"
)

// List accumulates diagnostics for batch reporting at the end of a
// compilation unit. The zero value is ready to use.
type List []*Error

// Add appends non-nil errors
func (l *List) Add(errs ...*Error) {
	for _, e := range errs {
		if e != nil {
			*l = append(*l, e)
		}
	}
}

// Append appends every diagnostic of other
func (l *List) Append(other List) {
	l.Add(other...)
}

func (l List) Len() int { return len(l) }

// Fatal returns the diagnostics that block compilation
func (l List) Fatal() List {
	var out List
	for _, e := range l {
		if e.IsFatal() {
			out = append(out, e)
		}
	}
	return out
}

// Warnings returns the advisory diagnostics
func (l List) Warnings() List {
	var out List
	for _, e := range l {
		if !e.IsFatal() {
			out = append(out, e)
		}
	}
	return out
}

func (l List) HasFatal() bool {
	for _, e := range l {
		if e.IsFatal() {
			return true
		}
	}
	return false
}

// HasKind reports whether any diagnostic is of kind k
func (l List) HasKind(k Kind) bool {
	for _, e := range l {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// OfKind returns the diagnostics of kind k
func (l List) OfKind(k Kind) List {
	var out List
	for _, e := range l {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Dedupe drops diagnostics that render identically to an earlier one,
// keeping the first.
func (l List) Dedupe() List {
	seen := make(map[string]bool, len(l))
	var out List
	for _, e := range l {
		msg := e.Error()
		if seen[msg] {
			continue
		}
		seen[msg] = true
		out = append(out, e)
	}
	return out
}

// Sorted returns a copy ordered by span, declaration, kind and message so
// that reports do not depend on the order passes ran in.
func (l List) Sorted() List {
	out := make(List, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Span.File != b.Span.File {
			return a.Span.File < b.Span.File
		}
		if a.Span.Line != b.Span.Line {
			return a.Span.Line < b.Span.Line
		}
		if a.Span.Col != b.Span.Col {
			return a.Span.Col < b.Span.Col
		}
		if a.Decl != b.Decl {
			return a.Decl < b.Decl
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Error() < b.Error()
	})
	return out
}

// Err returns nil when nothing blocks compilation. With strict set,
// warnings block too.
func (l List) Err(strict bool) error {
	blocking := l.Fatal()
	if strict {
		blocking = l
	}
	if len(blocking) == 0 {
		return nil
	}
	return &BatchError{Items: blocking.Sorted()}
}

// BatchError is returned when a compilation unit fails; it carries every
// blocking diagnostic, not only the first.
type BatchError struct {
	Items List
}

func (e *BatchError) Error() string {
	if len(e.Items) == 0 {
		return "[lower] no diagnostics"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%d diagnostic(s):\n", len(e.Items)))

	// Group by declaration for cleaner output
	byDecl := make(map[string][]*Error)
	var declOrder []string
	for _, item := range e.Items {
		if _, exists := byDecl[item.Decl]; !exists {
			declOrder = append(declOrder, item.Decl)
		}
		byDecl[item.Decl] = append(byDecl[item.Decl], item)
	}

	for _, decl := range declOrder {
		name := decl
		if name == "" {
			name = "<unit>"
		}
		b.WriteString("\n  ")
		b.WriteString(name)
		b.WriteString(":\n")
		for _, item := range byDecl[decl] {
			b.WriteString("    - ")
			b.WriteString(item.Severity().String())
			b.WriteString(": ")
			b.WriteString(item.Error())
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Unwrap exposes the individual diagnostics to errors.Is and errors.As
func (e *BatchError) Unwrap() []error {
	out := make([]error, len(e.Items))
	for i, item := range e.Items {
		out[i] = item
	}
	return out
}

// Is reports whether target matches this error type
func (e *BatchError) Is(target error) bool {
	_, ok := target.(*BatchError)
	return ok
}
