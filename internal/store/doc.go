// Package store defines the narrow object-store contract the upload engine
// consumes, and adapters that satisfy it for Amazon S3 and MinIO.
//
// The engine only ever creates, fills, completes or aborts a multipart upload,
// so adapters translate exactly those four calls and classify store errors.
package store
