// Package scheduler runs part uploads on a fixed pool of workers.
//
// Submission never waits on network I/O: it only blocks while the bounded
// task queue is full, which throttles a producer that outpaces the store.
// Each submitted part is attempted exactly once and resolves a Handle.
package scheduler
