// Package layout computes Canonical ABI size, alignment and field offsets
// for WIT types.
//
// Layout rules:
//   - Primitives: size equals alignment (u8=1, u32=4, u64=8, etc.)
//   - Records: fields laid out sequentially with padding for alignment;
//     an empty record has size zero
//   - Options and results: a one-byte discriminant followed by the payload
//   - Lists and strings: a (pointer, length) pair
//   - Handles (own, borrow) and futures: one i32 index
package layout
