package usecase

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/vitovidale/video-api-service/domain"
)

type mockVideoStore struct{ mock.Mock }

func (m *mockVideoStore) ListByOwner(ctx context.Context, ownerID string) ([]domain.Video, error) {
	args := m.Called(ctx, ownerID)
	videos, _ := args.Get(0).([]domain.Video)
	return videos, args.Error(1)
}

func (m *mockVideoStore) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.Video, error) {
	args := m.Called(ctx, id, ownerID)
	video, _ := args.Get(0).(*domain.Video)
	return video, args.Error(1)
}

func (m *mockVideoStore) Insert(ctx context.Context, video domain.Video) (domain.Video, error) {
	args := m.Called(ctx, video)
	return args.Get(0).(domain.Video), args.Error(1)
}

func (m *mockVideoStore) UpdateStatus(ctx context.Context, video domain.Video) error {
	return m.Called(ctx, video).Error(0)
}

func (m *mockVideoStore) UpdateStatusAndSnapshotsURL(ctx context.Context, video domain.Video) error {
	return m.Called(ctx, video).Error(0)
}

func (m *mockVideoStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockBlobStore struct{ mock.Mock }

func (m *mockBlobStore) Upload(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, content, contentType)
	return args.String(0), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) PublishExtractionRequested(ctx context.Context, videoID, storageKey, ownerID string) error {
	return m.Called(ctx, videoID, storageKey, ownerID).Error(0)
}

func (m *mockPublisher) PublishExtractionSucceeded(ctx context.Context, ownerID, videoURL, description, snapshotsURL string) error {
	return m.Called(ctx, ownerID, videoURL, description, snapshotsURL).Error(0)
}

func (m *mockPublisher) PublishExtractionFailed(ctx context.Context, ownerID, videoURL, description, errorMessage, errorDescription string) error {
	return m.Called(ctx, ownerID, videoURL, description, errorMessage, errorDescription).Error(0)
}
