// Package mono lowers effect-generic declarations into concrete variants.
//
// A Variant is one declaration under one full assignment of its effective
// set: every inherit argument substituted, the field capability spliced
// into types as a single slot, one definition selected per associated
// item, and function bodies reduced to the call sites live under that
// assignment. The Catalog caches variants per compilation unit and
// guarantees that a key is lowered at most once.
package mono
