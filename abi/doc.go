// Package abi implements the binary boundary contract between the host and
// compiled Fern guest modules.
//
// Every value that crosses the boundary is written with explicit layout
// rules rather than Go struct layout: record fields are placed in
// descending-alignment order with lexicographic name tiebreaks, tagged
// unions carry a u8 discriminant with lexicographically numbered cases, and
// all fields are fixed-width. Strings and lists are {ptr, len, cap} triples
// over refcounted heap blocks owned by the guest once returned.
//
// The guest target is wasm32, so boundary pointers are u32. Fields that the
// contract declares 64-bit stay 64-bit regardless of target; no
// pointer-sized integer ever crosses a serialization boundary.
package abi
