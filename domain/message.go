// domain/message.go
package domain

type MessageType string

const (
	MessageExtractSnapshot            MessageType = "MSG_EXTRACT_SNAPSHOT"
	MessageExtractSnapshotProcessing  MessageType = "MSG_EXTRACT_SNAPSHOT_PROCESSING"
	MessageExtractSnapshotSuccess     MessageType = "MSG_EXTRACT_SNAPSHOT_SUCCESS"
	MessageExtractSnapshotError       MessageType = "MSG_EXTRACT_SNAPSHOT_ERROR"
	MessageSendSnapshotExtractionOK   MessageType = "MSG_SEND_SNAPSHOT_EXTRACTION_SUCCESS"
	MessageSendSnapshotExtractionFail MessageType = "MSG_SEND_SNAPSHOT_EXTRACTION_ERROR"
)

type MessageSender string

const (
	SenderVideoAPIService            MessageSender = "VIDEO_API_SERVICE"
	SenderVideoImageProcessorService MessageSender = "VIDEO_IMAGE_PROCESSOR_SERVICE"
)

type MessageTarget string

const (
	TargetVideoAPIService            MessageTarget = "VIDEO_API_SERVICE"
	TargetVideoImageProcessorService MessageTarget = "VIDEO_IMAGE_PROCESSOR_SERVICE"
	TargetEmailService               MessageTarget = "EMAIL_SERVICE"
)

// VideoMessage is the envelope exchanged with the extraction worker and
// the notification service.
type VideoMessage struct {
	Type    MessageType    `json:"type"`
	Sender  MessageSender  `json:"sender"`
	Target  MessageTarget  `json:"target"`
	Payload MessagePayload `json:"payload"`
}

type MessagePayload struct {
	VideoID          string `json:"videoId,omitempty"`
	OwnerID          string `json:"ownerId,omitempty"`
	VideoName        string `json:"videoName,omitempty"`
	VideoURL         string `json:"videoUrl,omitempty"`
	VideoDescription string `json:"videoDescription,omitempty"`
	SnapshotsURL     string `json:"snapshotsUrl,omitempty"`
	ErrorMessage     string `json:"errorMessage,omitempty"`
	ErrorDescription string `json:"errorDescription,omitempty"`

	// VideoSnapshotsURL is the field name older extraction workers send.
	VideoSnapshotsURL string `json:"videoSnapshotsUrl,omitempty"`
}

// Snapshots returns the snapshots location under either field name,
// preferring snapshotsUrl.
func (p MessagePayload) Snapshots() string {
	if p.SnapshotsURL != "" {
		return p.SnapshotsURL
	}
	return p.VideoSnapshotsURL
}
