// Package compiler runs the lowering passes over one compilation unit.
//
// A unit is a set of parsed declarations. Compile builds the declaration
// model and the propagation graph, then processes each connected component
// on a bounded worker pool: field resolution, exhaustive lowering into the
// shared variant catalog and the legacy layout check. A component whose
// structural passes fail is skipped; the others continue. Finally every
// call site of every function variant is resolved and the variant it
// binds to is demanded from the catalog.
//
//	c := compiler.New(compiler.Config{Workers: 4})
//	res, err := c.Compile(ctx, sources)
//	if err != nil {
//		return err // cancelled
//	}
//	if err := res.Err(); err != nil {
//		return err // *errors.BatchError with every blocking diagnostic
//	}
//
// Each unit gets its own catalog. Cancelling the context discards it, so
// no partially lowered unit is ever returned.
package compiler
