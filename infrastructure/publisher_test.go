package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitovidale/video-api-service/domain"
)

type sentMessage struct {
	key  string
	body []byte
}

type fakeSink struct {
	sent []sentMessage
	err  error
}

func (f *fakeSink) Send(_ context.Context, key string, body []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{key: key, body: body})
	return nil
}

func decodeSent(t *testing.T, sink *fakeSink) domain.VideoMessage {
	t.Helper()
	require.Len(t, sink.sent, 1)
	var msg domain.VideoMessage
	require.NoError(t, json.Unmarshal(sink.sent[0].body, &msg))
	return msg
}

func TestPublishExtractionRequested(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	sink := &fakeSink{}
	p := NewMessagingPublisher(sink, nil, logger)

	require.NoError(t, p.PublishExtractionRequested(context.Background(), "v1", "videos/u1/1-clip.mp4", "u1"))

	msg := decodeSent(t, sink)
	assert.Equal(t, "v1", sink.sent[0].key)
	assert.Equal(t, domain.MessageExtractSnapshot, msg.Type)
	assert.Equal(t, domain.SenderVideoAPIService, msg.Sender)
	assert.Equal(t, domain.TargetVideoImageProcessorService, msg.Target)
	assert.Equal(t, domain.MessagePayload{VideoID: "v1", OwnerID: "u1", VideoName: "videos/u1/1-clip.mp4"}, msg.Payload)
}

func TestPublishNotifications(t *testing.T) {
	logger, _ := logtest.NewNullLogger()

	t.Run("success", func(t *testing.T) {
		sink := &fakeSink{}
		p := NewMessagingPublisher(sink, nil, logger)
		require.NoError(t, p.PublishExtractionSucceeded(context.Background(), "u1", "http://x/v.mp4", "d", "http://x/snap.zip"))

		msg := decodeSent(t, sink)
		assert.Equal(t, domain.MessageSendSnapshotExtractionOK, msg.Type)
		assert.Equal(t, domain.TargetEmailService, msg.Target)
		assert.Equal(t, "http://x/snap.zip", msg.Payload.SnapshotsURL)
		assert.Equal(t, "d", msg.Payload.VideoDescription)
	})

	t.Run("error", func(t *testing.T) {
		sink := &fakeSink{}
		p := NewMessagingPublisher(sink, nil, logger)
		require.NoError(t, p.PublishExtractionFailed(context.Background(), "u1", "http://x/v.mp4", "d", "ffmpeg failed", "exit status 1"))

		msg := decodeSent(t, sink)
		assert.Equal(t, domain.MessageSendSnapshotExtractionFail, msg.Type)
		assert.Equal(t, domain.TargetEmailService, msg.Target)
		assert.Equal(t, "ffmpeg failed", msg.Payload.ErrorMessage)
		assert.Equal(t, "exit status 1", msg.Payload.ErrorDescription)
		assert.Empty(t, msg.Payload.SnapshotsURL)
	})
}

func TestPublishFailureIsCountedAndWrapped(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	p := NewMessagingPublisher(&fakeSink{err: errors.New("channel closed")}, metrics, logger)

	err := p.PublishExtractionRequested(context.Background(), "v1", "k", "u1")

	assert.ErrorIs(t, err, domain.ErrPublishFailure)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.messagesPublished.WithLabelValues(string(domain.MessageExtractSnapshot), "error")))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "failed to publish message", hook.LastEntry().Message)
}
