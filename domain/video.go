// domain/video.go
package domain

import "time"

type ExtractionStatus string

const (
	StatusPending    ExtractionStatus = "VIDEO_IMAGE_EXTRACTION_PENDING"
	StatusRequested  ExtractionStatus = "VIDEO_IMAGE_EXTRACTION_REQUESTED"
	StatusProcessing ExtractionStatus = "VIDEO_IMAGE_EXTRACTION_PROCESSING"
	StatusSuccess    ExtractionStatus = "VIDEO_IMAGE_EXTRACTION_SUCCESS"
	StatusError      ExtractionStatus = "VIDEO_IMAGE_EXTRACTION_ERROR"
)

// Valid reports whether s is one of the known extraction statuses.
func (s ExtractionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusRequested, StatusProcessing, StatusSuccess, StatusError:
		return true
	}
	return false
}

// Video is one extraction job. Fields are only changed through the
// transition methods below, each of which returns a new value.
type Video struct {
	ID           string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	OwnerID      string
	Name         string // storage key of the uploaded binary
	Description  string
	URL          string
	SnapshotsURL string
	Status       ExtractionStatus
}

// NewVideo builds a record that has not been persisted yet: no ID, no
// snapshots, status REQUESTED.
func NewVideo(ownerID, name, description, url string, now time.Time) Video {
	return Video{
		CreatedAt:   now,
		UpdatedAt:   now,
		OwnerID:     ownerID,
		Name:        name,
		Description: description,
		URL:         url,
		Status:      StatusRequested,
	}
}

// OwnedBy reports whether ownerID may see and mutate the record.
func (v Video) OwnedBy(ownerID string) bool {
	return ownerID != "" && v.OwnerID == ownerID
}

func (v Video) WithProcessing(now time.Time) Video {
	v.Status = StatusProcessing
	v.UpdatedAt = now
	return v
}

// WithSuccess marks the extraction done. A success always carries the
// snapshots location; an empty one yields ErrInvalidStatusTransition.
func (v Video) WithSuccess(snapshotsURL string, now time.Time) (Video, error) {
	if snapshotsURL == "" {
		return v, NewError(CodeInvalidStatusTransition, "success requires a snapshots url", nil)
	}
	v.Status = StatusSuccess
	v.SnapshotsURL = snapshotsURL
	v.UpdatedAt = now
	return v, nil
}

// WithError marks the extraction failed. SnapshotsURL is left as is.
func (v Video) WithError(now time.Time) Video {
	v.Status = StatusError
	v.UpdatedAt = now
	return v
}

// WithRetry moves a failed record back to REQUESTED. Any other source
// status yields ErrInvalidStatusTransition and the record is unchanged.
func (v Video) WithRetry(now time.Time) (Video, error) {
	if v.Status != StatusError {
		return v, NewError(CodeInvalidStatusTransition,
			"video can only be retried from status "+string(StatusError)+", current status is "+string(v.Status), nil)
	}
	v.Status = StatusRequested
	v.UpdatedAt = now
	return v, nil
}
