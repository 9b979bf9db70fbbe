// Package effect models the boolean capabilities a declaration can be generic over.
//
// A Kind names one capability (for example async). A Set is the ordered,
// duplicate-free list of kinds a declaration is generic over. An Assignment
// maps every kind of a Set to present or absent and is the unit of
// monomorphization: one concrete variant exists per (declaration, Assignment).
//
// # Assignments
//
// Assignments are immutable values backed by a bitmask over their Set:
//
//	set, _ := effect.NewSet("async", "const")
//	for _, a := range effect.Enumerate(set) {
//	    fmt.Println(a) // <!async, !const>, <async, !const>, ...
//	}
//
// Enumerate always yields the all-absent assignment first.
//
// # Partial assignments
//
// Call-site resolution accumulates knowledge kind by kind in a Partial.
// A Partial that knows every kind of its Set completes into an Assignment;
// otherwise Candidates lists the assignments still consistent with it.
//
// # Predicates
//
// Expr is the compile-time predicate attached to conditional fields and
// associated-item definitions (#[cfg(effect = async)] and friends). Predicates
// that passed Check against a Set are total over every Assignment of that Set.
package effect
