// Package dict builds the guest runtime's native dictionary: an
// open-addressing hash table with Robin Hood probing, produced in the exact
// byte layout the Fern runtime consumes with no further conversion.
//
// The builder is a one-shot bulk constructor. The bucket count is sized up
// front from the element count and the 0.8 load factor; there is no
// incremental growth. Duplicate keys are a caller contract violation:
// every pair is inserted verbatim and lookup behavior between duplicates is
// unspecified.
package dict
