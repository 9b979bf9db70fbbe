// Package callsite binds each use of an effect-generic declaration to one
// concrete variant.
//
// A call site moves through Unresolved, Partial and then one of the
// terminal states Resolved, Ambiguous or Failed. Kinds are fixed in
// priority order:
//
//  1. the callee's effect-specific kinds
//  2. explicit annotations, on the call (File::open::<async>) or on the
//     binding type (let f: File<async> = ...), which must agree
//  3. postfix markers such as .await, through the effect registry
//  4. the enclosing function's own assignment
//
// Kinds left unknown make the call Ambiguous; nothing is ever defaulted.
// Resolution reads only the propagation graph, so the same site in the
// same context always resolves the same way.
package callsite
