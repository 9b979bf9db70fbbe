// Package fields resolves the conditional fields of effect-generic types.
//
// For a Type generic over E, Resolve enumerates the 2^|E| assignments,
// partitions fields into always-present, baseline, conditional and dead
// ones, and synthesizes one Capability per distinct conditional-field
// shape. Baseline fields such as #[cfg(not(effect = async))] hold when no
// effect is active; they stay inline in the variants where they hold, so
// the all-absent layout matches the type before it became generic. Shapes
// are fingerprinted so assignments with identical shapes share a single
// Capability. The all-absent assignment always maps to an empty one.
package fields
