// Package buffer coalesces incoming chunks into part payloads that satisfy the
// store's minimum part size.
package buffer
