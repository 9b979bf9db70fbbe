// Package syntax parses the effect annotation grammar: #[maybe(..)] and
// #[cfg(..)] attributes, impl and fn headers, type expressions with effect
// arguments, and call-site expressions with turbofish and postfix markers.
package syntax
