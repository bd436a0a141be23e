// Package transfer contains the streaming part pipeline: a buffer that turns
// chunks into parts, a scheduler that uploads parts concurrently and a registry
// that reconciles their results.
package transfer
