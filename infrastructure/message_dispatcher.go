// infrastructure/message_dispatcher.go
package infrastructure

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/domain"
)

// Disposition tells a subscriber what to do with a delivery once it has
// been dispatched.
type Disposition int

const (
	Ack Disposition = iota
	Requeue
)

func (d Disposition) String() string {
	if d == Requeue {
		return "requeue"
	}
	return "ack"
}

// ExtractionEventHandler is the part of the lifecycle engine driven by
// the extraction worker.
type ExtractionEventHandler interface {
	HandleProcessingReceived(ctx context.Context, id, ownerID string) error
	HandleSuccessReceived(ctx context.Context, id, ownerID, snapshotsURL string) error
	HandleErrorReceived(ctx context.Context, id, ownerID, errorMessage, errorDescription string) error
}

type MessageDispatcher struct {
	handler ExtractionEventHandler
	metrics *Metrics
	logger  logrus.FieldLogger
}

func NewMessageDispatcher(handler ExtractionEventHandler, metrics *Metrics, logger logrus.FieldLogger) *MessageDispatcher {
	return &MessageDispatcher{handler: handler, metrics: metrics, logger: logger}
}

// Dispatch decodes one envelope and routes it to the engine. Only
// infrastructure failures are requeued; anything a redelivery cannot fix
// is acked and logged.
func (d *MessageDispatcher) Dispatch(ctx context.Context, body []byte) Disposition {
	var msg domain.VideoMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		d.metrics.observeDispatch("unknown", "malformed")
		d.logger.WithError(err).Error("discarding malformed message")
		return Ack
	}

	log := d.logger.WithFields(logrus.Fields{
		"type":     msg.Type,
		"sender":   msg.Sender,
		"target":   msg.Target,
		"video_id": msg.Payload.VideoID,
		"owner_id": msg.Payload.OwnerID,
	})

	if msg.Sender != domain.SenderVideoImageProcessorService || msg.Target != domain.TargetVideoAPIService {
		d.metrics.observeDispatch(string(msg.Type), "ignored")
		log.Warn("ignoring message not addressed to this service")
		return Ack
	}

	var err error
	switch msg.Type {
	case domain.MessageExtractSnapshotProcessing:
		err = d.handler.HandleProcessingReceived(ctx, msg.Payload.VideoID, msg.Payload.OwnerID)
	case domain.MessageExtractSnapshotSuccess:
		err = d.handler.HandleSuccessReceived(ctx, msg.Payload.VideoID, msg.Payload.OwnerID, msg.Payload.Snapshots())
	case domain.MessageExtractSnapshotError:
		err = d.handler.HandleErrorReceived(ctx, msg.Payload.VideoID, msg.Payload.OwnerID, msg.Payload.ErrorMessage, msg.Payload.ErrorDescription)
	default:
		d.metrics.observeDispatch(string(msg.Type), "unknown")
		log.Error("unknown message type")
		return Ack
	}

	if err == nil {
		d.metrics.observeDispatch(string(msg.Type), "ok")
		log.Info("message handled")
		return Ack
	}

	if isPermanent(err) {
		d.metrics.observeDispatch(string(msg.Type), "rejected")
		log.WithError(err).Warn("message rejected")
		return Ack
	}

	d.metrics.observeDispatch(string(msg.Type), "requeued")
	log.WithError(err).Error("message handling failed, requeueing")
	return Requeue
}

func isPermanent(err error) bool {
	return errors.Is(err, domain.ErrVideoNotFound) ||
		errors.Is(err, domain.ErrInvalidStatusTransition) ||
		errors.Is(err, domain.ErrInvalidVideoFile)
}
