// Package hostfn implements the hosted function table: the fixed,
// integer-indexed set of native effects a compiled Fern program can invoke.
//
// # Index contract
//
// Indices are assigned at table construction by sorting the fully-qualified
// effect names lexicographically. The Fern compiler bakes the same ordering
// into guest code, so the order is an external contract: adding, renaming,
// or removing an effect is a compiler-coordinated change, and a mismatch
// corrupts argument marshaling silently rather than failing.
//
// # Failure policy
//
// Storage failures cross the boundary as tagged result values. Effects
// whose signatures have no failure channel (HTTP, stdin, random) degrade to
// empty or zero results. Nothing raised inside an effect body ever unwinds
// into the guest; only allocation failure aborts the run, because the guest
// has no failure path for allocation.
//
// # Deployment variants
//
// Sandboxed targets swap the storage and HTTP bodies for in-memory and
// empty-result stand-ins. The names, and therefore the indices and buffer
// layouts, never change between variants.
package hostfn
