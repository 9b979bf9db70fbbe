// Package propagate threads effect assignments through scoped declarations.
//
// Every declaration either owns its assignment (a root: a type, a trait, a
// top-level function), inherits it from its parent (methods from their impl
// or type, impls from the type they implement) or inherits it under a fixed
// constraint (effect-specific members, which exist only where their fixed
// kinds are present). The result is a forest; each tree is a Component
// that is lowered as a unit.
package propagate
