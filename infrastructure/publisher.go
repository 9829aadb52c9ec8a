// infrastructure/publisher.go
package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/domain"
)

// MessageSink delivers an encoded envelope to the broker. The key is
// used for partitioning where the broker supports it.
type MessageSink interface {
	Send(ctx context.Context, key string, body []byte) error
}

// MessagingPublisher encodes lifecycle events as VideoMessage envelopes
// and hands them to a sink.
type MessagingPublisher struct {
	sink    MessageSink
	metrics *Metrics
	logger  logrus.FieldLogger
}

var _ domain.Publisher = (*MessagingPublisher)(nil)

func NewMessagingPublisher(sink MessageSink, metrics *Metrics, logger logrus.FieldLogger) *MessagingPublisher {
	return &MessagingPublisher{sink: sink, metrics: metrics, logger: logger}
}

func (p *MessagingPublisher) PublishExtractionRequested(ctx context.Context, videoID, storageKey, ownerID string) error {
	return p.publish(ctx, videoID, domain.VideoMessage{
		Type:   domain.MessageExtractSnapshot,
		Sender: domain.SenderVideoAPIService,
		Target: domain.TargetVideoImageProcessorService,
		Payload: domain.MessagePayload{
			VideoID:   videoID,
			OwnerID:   ownerID,
			VideoName: storageKey,
		},
	})
}

func (p *MessagingPublisher) PublishExtractionSucceeded(ctx context.Context, ownerID, videoURL, description, snapshotsURL string) error {
	return p.publish(ctx, ownerID, domain.VideoMessage{
		Type:   domain.MessageSendSnapshotExtractionOK,
		Sender: domain.SenderVideoAPIService,
		Target: domain.TargetEmailService,
		Payload: domain.MessagePayload{
			OwnerID:          ownerID,
			VideoURL:         videoURL,
			VideoDescription: description,
			SnapshotsURL:     snapshotsURL,
		},
	})
}

func (p *MessagingPublisher) PublishExtractionFailed(ctx context.Context, ownerID, videoURL, description, errorMessage, errorDescription string) error {
	return p.publish(ctx, ownerID, domain.VideoMessage{
		Type:   domain.MessageSendSnapshotExtractionFail,
		Sender: domain.SenderVideoAPIService,
		Target: domain.TargetEmailService,
		Payload: domain.MessagePayload{
			OwnerID:          ownerID,
			VideoURL:         videoURL,
			VideoDescription: description,
			ErrorMessage:     errorMessage,
			ErrorDescription: errorDescription,
		},
	})
}

func (p *MessagingPublisher) publish(ctx context.Context, key string, msg domain.VideoMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		p.metrics.observePublish(string(msg.Type), "error")
		return domain.PublishFailure("failed to encode message", err)
	}

	if err := p.sink.Send(ctx, key, body); err != nil {
		p.metrics.observePublish(string(msg.Type), "error")
		p.logger.WithFields(logrus.Fields{"type": msg.Type, "target": msg.Target}).WithError(err).Error("failed to publish message")
		return domain.PublishFailure("failed to publish "+string(msg.Type), err)
	}

	p.metrics.observePublish(string(msg.Type), "ok")
	p.logger.WithFields(logrus.Fields{"type": msg.Type, "target": msg.Target}).Debug("message published")
	return nil
}
