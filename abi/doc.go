// Package abi checks that effect-generic types keep their pre-generic
// memory layout.
//
// A type that gained a #[maybe] set must, under the all-absent assignment,
// lay out exactly like the non-generic type it replaced: same fields in the
// same order with the same types, offsets and sizes, and a capability slot
// of size zero. Legacy layouts are recorded per released version; the
// checker compares only those selected by the configured semver range:
//
//	checker := abi.NewChecker(catalog, compat, logger)
//	diags := checker.Check(decl)
//
// Layouts follow the Component Model Canonical ABI. References to other
// types lay out as records of the referenced variant, and futures and
// resource handles as 32-bit indexes.
package abi
