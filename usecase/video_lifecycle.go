// usecase/video_lifecycle.go
package usecase

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/domain"
)

type CreateVideoInput struct {
	FileName    string
	FileContent []byte
	MimeType    string
	OwnerID     string
	Description string
}

// VideoLifecycle owns every status change of a video record and keeps
// blob storage, the record store and the message bus in step. It holds
// no state between calls.
type VideoLifecycle struct {
	videos    domain.VideoStore
	blobs     domain.BlobStore
	publisher domain.Publisher
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewVideoLifecycle(videos domain.VideoStore, blobs domain.BlobStore, publisher domain.Publisher, logger logrus.FieldLogger) *VideoLifecycle {
	return &VideoLifecycle{
		videos:    videos,
		blobs:     blobs,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// StorageKey namespaces an upload under its owner and prefixes the file
// name with a nanosecond timestamp.
func StorageKey(ownerID, fileName string, now time.Time) string {
	return fmt.Sprintf("videos/%s/%d-%s", ownerID, now.UnixNano(), path.Base(fileName))
}

func (uc *VideoLifecycle) ListAll(ctx context.Context, ownerID string) ([]domain.Video, error) {
	videos, err := uc.videos.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if videos == nil {
		videos = []domain.Video{}
	}
	return videos, nil
}

func (uc *VideoLifecycle) GetByID(ctx context.Context, id, ownerID string) (domain.Video, error) {
	return uc.find(ctx, id, ownerID)
}

func (uc *VideoLifecycle) Create(ctx context.Context, input CreateVideoInput) (domain.Video, error) {
	file, err := domain.NewVideoFile(input.FileName, input.FileContent, input.MimeType)
	if err != nil {
		return domain.Video{}, err
	}

	now := uc.now()
	key := StorageKey(input.OwnerID, file.Name, now)

	url, err := uc.blobs.Upload(ctx, key, file.Content, file.MimeType)
	if err != nil {
		return domain.Video{}, err
	}

	video, err := uc.videos.Insert(ctx, domain.NewVideo(input.OwnerID, key, input.Description, url, now))
	if err != nil {
		return domain.Video{}, err
	}

	if err := uc.publisher.PublishExtractionRequested(ctx, video.ID, video.Name, video.OwnerID); err != nil {
		log := uc.logger.WithFields(logrus.Fields{"video_id": video.ID, "owner_id": video.OwnerID})
		// compensation must run even when the request context is gone
		if delErr := uc.videos.Delete(context.WithoutCancel(ctx), video.ID); delErr != nil {
			log.WithError(delErr).Error("failed to remove video after extraction request was not published")
		} else {
			log.WithError(err).Warn("removed video after extraction request was not published")
		}
		return domain.Video{}, err
	}

	uc.logger.WithFields(logrus.Fields{"video_id": video.ID, "owner_id": video.OwnerID, "key": key}).Info("video created and extraction requested")
	return video, nil
}

// Retry re-requests extraction for a failed video. The request is
// published before the status flip is written.
func (uc *VideoLifecycle) Retry(ctx context.Context, id, ownerID string) (domain.Video, error) {
	video, err := uc.find(ctx, id, ownerID)
	if err != nil {
		return domain.Video{}, err
	}

	retried, err := video.WithRetry(uc.now())
	if err != nil {
		return domain.Video{}, err
	}

	if err := uc.publisher.PublishExtractionRequested(ctx, retried.ID, retried.Name, retried.OwnerID); err != nil {
		return domain.Video{}, err
	}
	if err := uc.videos.UpdateStatus(ctx, retried); err != nil {
		return domain.Video{}, err
	}
	return retried, nil
}

func (uc *VideoLifecycle) HandleProcessingReceived(ctx context.Context, id, ownerID string) error {
	video, err := uc.find(ctx, id, ownerID)
	if err != nil {
		return err
	}
	return uc.videos.UpdateStatus(ctx, video.WithProcessing(uc.now()))
}

// HandleSuccessReceived persists SUCCESS with the snapshots URL, then
// notifies the owner.
func (uc *VideoLifecycle) HandleSuccessReceived(ctx context.Context, id, ownerID, snapshotsURL string) error {
	video, err := uc.find(ctx, id, ownerID)
	if err != nil {
		return err
	}

	updated, err := video.WithSuccess(snapshotsURL, uc.now())
	if err != nil {
		return err
	}
	if err := uc.videos.UpdateStatusAndSnapshotsURL(ctx, updated); err != nil {
		return err
	}

	if err := uc.publisher.PublishExtractionSucceeded(ctx, updated.OwnerID, updated.URL, updated.Description, updated.SnapshotsURL); err != nil {
		uc.logger.WithFields(logrus.Fields{"video_id": updated.ID, "owner_id": updated.OwnerID}).WithError(err).Error("success persisted but notification failed")
		return err
	}
	return nil
}

// HandleErrorReceived persists ERROR, then notifies the owner.
func (uc *VideoLifecycle) HandleErrorReceived(ctx context.Context, id, ownerID, errorMessage, errorDescription string) error {
	video, err := uc.find(ctx, id, ownerID)
	if err != nil {
		return err
	}

	updated := video.WithError(uc.now())
	if err := uc.videos.UpdateStatus(ctx, updated); err != nil {
		return err
	}

	if err := uc.publisher.PublishExtractionFailed(ctx, updated.OwnerID, updated.URL, updated.Description, errorMessage, errorDescription); err != nil {
		uc.logger.WithFields(logrus.Fields{"video_id": updated.ID, "owner_id": updated.OwnerID}).WithError(err).Error("error persisted but notification failed")
		return err
	}
	return nil
}

// Delete removes the record only; the uploaded binary stays in the blob
// store.
func (uc *VideoLifecycle) Delete(ctx context.Context, id, ownerID string) error {
	video, err := uc.find(ctx, id, ownerID)
	if err != nil {
		return err
	}
	return uc.videos.Delete(ctx, video.ID)
}

// find treats an owner mismatch exactly like a missing record.
func (uc *VideoLifecycle) find(ctx context.Context, id, ownerID string) (domain.Video, error) {
	video, err := uc.videos.GetByIDAndOwner(ctx, id, ownerID)
	if err != nil {
		return domain.Video{}, err
	}
	if video == nil || !video.OwnedBy(ownerID) {
		return domain.Video{}, domain.NewError(domain.CodeNotFound, "video not found", nil)
	}
	return *video, nil
}
