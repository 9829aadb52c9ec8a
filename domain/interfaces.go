// domain/interfaces.go
package domain

import "context"

// VideoStore persists video records. GetByIDAndOwner returns (nil, nil)
// on a miss; every backend error is a StorageFailure.
type VideoStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]Video, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*Video, error)
	Insert(ctx context.Context, video Video) (Video, error)
	UpdateStatus(ctx context.Context, video Video) error
	UpdateStatusAndSnapshotsURL(ctx context.Context, video Video) error
	Delete(ctx context.Context, id string) error
}

// BlobStore uploads binaries and returns a URL they can be fetched from.
type BlobStore interface {
	Upload(ctx context.Context, key string, content []byte, contentType string) (string, error)
}

type Publisher interface {
	PublishExtractionRequested(ctx context.Context, videoID, storageKey, ownerID string) error
	PublishExtractionSucceeded(ctx context.Context, ownerID, videoURL, description, snapshotsURL string) error
	PublishExtractionFailed(ctx context.Context, ownerID, videoURL, description, errorMessage, errorDescription string) error
}
