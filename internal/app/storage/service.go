/*
Package storage implements the object storage collaborator.

Messages carry bare image keys in the store; this service resolves a key to a
presigned download URL when a message is enriched for broadcast. Upload
handling itself belongs to the HTTP layer, which shares the same bucket.
*/
package storage

import (
	"context"
	"time"
)

// PresignedURLDuration is the validity window for generated download URLs.
// Long enough for a client to render the chat it just received, short enough
// that forwarded URLs go stale quickly.
const PresignedURLDuration = 15 * time.Minute

// ServiceConfig holds the configuration required to connect to the storage service.
type ServiceConfig struct {
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Service defines the public interface for the file storage collaborator.
type Service interface {
	// PresignDownload generates a pre-signed URL for downloading the given key.
	PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error)
}

// NewService is the factory function for Service.
// Only S3-compatible backends are currently supported.
func NewService(cfg ServiceConfig) (Service, error) {
	return newS3Client(cfg)
}
