// Package decl is the declaration model of the lowering engine.
//
// Build ingests parsed Source records (types, traits, impls and functions
// with their #[maybe] and #[cfg] annotations) and validates them as a batch.
// The resulting Model is read-only and safe for concurrent use.
//
// Identities follow the source: "File", "Read", "impl Read for File",
// "File::open" for inherent methods, "<File as Read>::read" for trait impl
// methods and "Read::read" for trait methods.
package decl
