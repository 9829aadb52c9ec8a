// infrastructure/gin_handlers.go
package infrastructure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/vitovidale/video-api-service/domain"
	"github.com/vitovidale/video-api-service/usecase"
)

type VideoService interface {
	ListAll(ctx context.Context, ownerID string) ([]domain.Video, error)
	GetByID(ctx context.Context, id, ownerID string) (domain.Video, error)
	Create(ctx context.Context, input usecase.CreateVideoInput) (domain.Video, error)
	Retry(ctx context.Context, id, ownerID string) (domain.Video, error)
	Delete(ctx context.Context, id, ownerID string) error
}

var _ VideoService = (*usecase.VideoLifecycle)(nil)

type VideoHandlers struct {
	videos         VideoService
	maxUploadBytes int64
	logger         logrus.FieldLogger
}

func NewVideoHandlers(videos VideoService, maxUploadBytes int64, logger logrus.FieldLogger) *VideoHandlers {
	return &VideoHandlers{videos: videos, maxUploadBytes: maxUploadBytes, logger: logger}
}

type videoResponse struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	UserID       string    `json:"userId"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	SnapshotsURL string    `json:"snapshotsUrl"`
	Status       string    `json:"status"`
}

func toVideoResponse(v domain.Video) videoResponse {
	return videoResponse{
		ID:           v.ID,
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
		UserID:       v.OwnerID,
		Description:  v.Description,
		URL:          v.URL,
		SnapshotsURL: v.SnapshotsURL,
		Status:       string(v.Status),
	}
}

func (h *VideoHandlers) ListVideosHandler(c *gin.Context) {
	videos, err := h.videos.ListAll(c.Request.Context(), ownerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, toVideoResponse(v))
	}
	c.JSON(http.StatusOK, out)
}

func (h *VideoHandlers) GetVideoHandler(c *gin.Context) {
	video, err := h.videos.GetByID(c.Request.Context(), c.Param("id"), ownerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video))
}

func (h *VideoHandlers) UploadVideoHandler(c *gin.Context) {
	if c.Request.ContentLength > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Video exceeds the maximum upload size"})
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fileHeader, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Video exceeds the maximum upload size"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided in the request"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.respondError(c, err)
		return
	}

	video, err := h.videos.Create(c.Request.Context(), usecase.CreateVideoInput{
		FileName:    fileHeader.Filename,
		FileContent: content,
		MimeType:    fileHeader.Header.Get("Content-Type"),
		OwnerID:     ownerID(c),
		Description: c.PostForm("description"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video))
}

func (h *VideoHandlers) RetryVideoHandler(c *gin.Context) {
	video, err := h.videos.Retry(c.Request.Context(), c.Param("id"), ownerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toVideoResponse(video))
}

func (h *VideoHandlers) DeleteVideoHandler(c *gin.Context) {
	if err := h.videos.Delete(c.Request.Context(), c.Param("id"), ownerID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// respondError maps the error taxonomy onto HTTP. Infrastructure detail
// is logged and never returned.
func (h *VideoHandlers) respondError(c *gin.Context, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		switch de.Code {
		case domain.CodeNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": de.Message})
			return
		case domain.CodeInvalidFile, domain.CodeInvalidStatusTransition:
			c.JSON(http.StatusBadRequest, gin.H{"error": de.Message})
			return
		}
	}

	h.logger.WithFields(logrus.Fields{
		"method":   c.Request.Method,
		"path":     c.FullPath(),
		"owner_id": ownerID(c),
	}).WithError(err).Error("request failed")
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}
