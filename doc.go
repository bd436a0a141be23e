// Package chunkupload streams objects of unknown size into S3-compatible
// storage as multipart uploads.
//
// Bytes arrive as chunks of arbitrary size. They are accumulated until the
// store's minimum part size is reached, then handed to a bounded pool of
// upload workers while the producer keeps reading. When the stream ends the
// outstanding parts are reconciled in part-number order and the upload is
// completed. Any failure aborts the store-side upload exactly once.
//
// Key features:
//   - Constant memory per session regardless of object size
//   - Part uploads run concurrently with chunk ingestion
//   - Backpressure when the upload queue is full
//   - Size limits checked before any store interaction
//   - AWS S3 (aws-sdk-go-v2) and MinIO (minio-go) backends
//
// Example usage:
//
//	client, err := chunkupload.New(
//	    chunkupload.WithRegion("eu-west-1"),
//	    chunkupload.WithMaxSize(5 << 30),
//	)
//	if err != nil {
//	    return err
//	}
//
//	session, err := client.NewSession(ctx, "my-bucket", "uploads/video.mp4",
//	    chunkupload.WithContentType("video/mp4"),
//	)
//	if err != nil {
//	    return err
//	}
//	for chunk := range chunks {
//	    if err := session.Write(ctx, chunk); err != nil {
//	        return err // the session already aborted
//	    }
//	}
//	result, err := session.Complete(ctx)
//
// For plain readers and files, Client.Upload and Client.UploadFile drive a
// session to completion.
package chunkupload
