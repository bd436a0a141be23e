// Package pool provides memory reuse for part payloads.
//
// Every part of an upload needs a contiguous buffer of roughly the minimum
// part size. Recycling those buffers once a part has been sent keeps memory
// bounded by the number of parts in flight rather than the number uploaded.
package pool
