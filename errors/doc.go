// Package errors provides the structured diagnostics of the lowering engine.
//
// Errors are categorized by Phase (which pass produced them) and Kind (the
// taxonomy entry). Each Error carries the source Span, the declaration
// identity, the rule that fired and, where relevant, the conflicting or
// candidate effect assignments, so tooling can render a precise message.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseResolve, errors.KindEffectMismatch).
//		At(span).
//		Decl("Socket::connect").
//		Assignments("<async>", "<!async>").
//		Detail("binding type and call disagree").
//		Build()
//
// Or use convenience constructors for the taxonomy:
//
//	err := errors.DeadField(span, "File", "waker", pred)
//	err := errors.AmbiguousEffectInference(span, "File::open", []string{"async"}, cands)
//
// Only KindDeadField is advisory. List collects diagnostics across passes and
// components; List.Err turns the blocking subset into a *BatchError that
// reports them all at once. All errors support errors.Is/As.
package errors
