package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vitovidale/video-api-service/domain"
	"github.com/vitovidale/video-api-service/usecase"
)

type mockVideoService struct {
	mock.Mock
}

func (m *mockVideoService) ListAll(ctx context.Context, ownerID string) ([]domain.Video, error) {
	args := m.Called(ctx, ownerID)
	videos, _ := args.Get(0).([]domain.Video)
	return videos, args.Error(1)
}

func (m *mockVideoService) GetByID(ctx context.Context, id, ownerID string) (domain.Video, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Get(0).(domain.Video), args.Error(1)
}

func (m *mockVideoService) Create(ctx context.Context, input usecase.CreateVideoInput) (domain.Video, error) {
	args := m.Called(ctx, input)
	return args.Get(0).(domain.Video), args.Error(1)
}

func (m *mockVideoService) Retry(ctx context.Context, id, ownerID string) (domain.Video, error) {
	args := m.Called(ctx, id, ownerID)
	return args.Get(0).(domain.Video), args.Error(1)
}

func (m *mockVideoService) Delete(ctx context.Context, id, ownerID string) error {
	return m.Called(ctx, id, ownerID).Error(0)
}

const testSecret = "test-secret"

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(svc VideoService, maxUploadBytes int64, checks ...HealthCheck) *gin.Engine {
	logger, _ := logtest.NewNullLogger()
	reg := prometheus.NewRegistry()
	return NewRouter(RouterDeps{
		Handlers:  NewVideoHandlers(svc, maxUploadBytes, logger),
		Metrics:   NewMetrics(reg),
		Gatherer:  reg,
		JWTSecret: []byte(testSecret),
		Checks:    checks,
		Logger:    logger,
	})
}

func sampleVideo() domain.Video {
	return domain.Video{
		ID:          "v1",
		CreatedAt:   testNow,
		UpdatedAt:   testNow,
		OwnerID:     "u1",
		Name:        "videos/u1/1-clip.mp4",
		Description: "d",
		URL:         "http://blob/videos/u1/1-clip.mp4",
		Status:      domain.StatusRequested,
	}
}

func doRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestListVideos(t *testing.T) {
	svc := &mockVideoService{}
	svc.On("ListAll", mock.Anything, "u1").Return([]domain.Video{sampleVideo()}, nil)
	router := newTestRouter(svc, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("x-user-id", "u1")
	rec := doRequest(router, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "v1", body[0]["id"])
	assert.Equal(t, "u1", body[0]["userId"])
	assert.Equal(t, "VIDEO_IMAGE_EXTRACTION_REQUESTED", body[0]["status"])
	assert.Equal(t, "", body[0]["snapshotsUrl"])
	assert.NotContains(t, body[0], "name")
}

func TestListVideosEmptyIsArray(t *testing.T) {
	svc := &mockVideoService{}
	svc.On("ListAll", mock.Anything, "u1").Return([]domain.Video{}, nil)
	router := newTestRouter(svc, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("x-user-id", "u1")
	rec := doRequest(router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestOwnerIsRequired(t *testing.T) {
	svc := &mockVideoService{}
	router := newTestRouter(svc, 1<<20)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"User ID is required"}`, rec.Body.String())
	svc.AssertNotCalled(t, "ListAll", mock.Anything, mock.Anything)
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(method, Claims{
		UserID:           userID,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestBearerTokenIdentifiesOwner(t *testing.T) {
	svc := &mockVideoService{}
	svc.On("GetByID", mock.Anything, "v1", "jwt-user").Return(sampleVideo(), nil)
	router := newTestRouter(svc, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/v1", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "jwt-user"))
	req.Header.Set("x-user-id", "header-user")
	rec := doRequest(router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestInvalidBearerTokenIsUnauthorized(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"wrong scheme", "Basic abc"},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), "u1")},
		{"missing user id", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), "")},
		{"garbage", "Bearer not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockVideoService{}, 1<<20)
			req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
			req.Header.Set("Authorization", tt.header)

			assert.Equal(t, http.StatusUnauthorized, doRequest(router, req).Code)
		})
	}
}

func TestGetVideoErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"not found", domain.NewError(domain.CodeNotFound, "video not found", nil), http.StatusNotFound, `{"error":"video not found"}`},
		{"storage failure", domain.StorageFailure("failed to get video", errors.New("connection refused")), http.StatusInternalServerError, `{"error":"Internal Server Error"}`},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, `{"error":"Internal Server Error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockVideoService{}
			svc.On("GetByID", mock.Anything, "v1", "u1").Return(domain.Video{}, tt.err)
			router := newTestRouter(svc, 1<<20)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/v1", nil)
			req.Header.Set("x-user-id", "u1")
			rec := doRequest(router, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func multipartUpload(t *testing.T, fileName, contentType string, content []byte, description string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	if fileName != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="video"; filename="`+fileName+`"`)
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("description", description))
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestUploadVideo(t *testing.T) {
	content := []byte("0123456789")
	svc := &mockVideoService{}
	svc.On("Create", mock.Anything, usecase.CreateVideoInput{
		FileName:    "clip.mp4",
		FileContent: content,
		MimeType:    "video/mp4",
		OwnerID:     "u1",
		Description: "d",
	}).Return(sampleVideo(), nil)
	router := newTestRouter(svc, 1<<20)

	body, contentType := multipartUpload(t, "clip.mp4", "video/mp4", content, "d")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-user-id", "u1")
	rec := doRequest(router, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestUploadVideoRejections(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		svc := &mockVideoService{}
		router := newTestRouter(svc, 1<<20)

		body, contentType := multipartUpload(t, "", "", nil, "d")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-user-id", "u1")
		rec := doRequest(router, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("too large", func(t *testing.T) {
		svc := &mockVideoService{}
		router := newTestRouter(svc, 64)

		body, contentType := multipartUpload(t, "clip.mp4", "video/mp4", bytes.Repeat([]byte("x"), 4096), "d")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-user-id", "u1")
		rec := doRequest(router, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("invalid file from engine", func(t *testing.T) {
		svc := &mockVideoService{}
		svc.On("Create", mock.Anything, mock.Anything).
			Return(domain.Video{}, domain.NewError(domain.CodeInvalidFile, "mimetype must be video/mp4", nil))
		router := newTestRouter(svc, 1<<20)

		body, contentType := multipartUpload(t, "clip.avi", "video/x-msvideo", []byte("abc"), "d")
		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("x-user-id", "u1")
		rec := doRequest(router, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"mimetype must be video/mp4"}`, rec.Body.String())
	})
}

func TestRetryVideo(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		retried := sampleVideo()
		svc := &mockVideoService{}
		svc.On("Retry", mock.Anything, "v1", "u1").Return(retried, nil)
		router := newTestRouter(svc, 1<<20)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/v1/retry", nil)
		req.Header.Set("x-user-id", "u1")
		rec := doRequest(router, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("invalid transition", func(t *testing.T) {
		svc := &mockVideoService{}
		svc.On("Retry", mock.Anything, "v1", "u1").
			Return(domain.Video{}, domain.NewError(domain.CodeInvalidStatusTransition, "only videos in error can be retried", nil))
		router := newTestRouter(svc, 1<<20)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/v1/retry", nil)
		req.Header.Set("x-user-id", "u1")
		rec := doRequest(router, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDeleteVideo(t *testing.T) {
	svc := &mockVideoService{}
	svc.On("Delete", mock.Anything, "v1", "u1").Return(nil)
	router := newTestRouter(svc, 1<<20)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/videos/v1", nil)
	req.Header.Set("x-user-id", "u1")
	rec := doRequest(router, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	svc.AssertExpectations(t)
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "database", Check: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "broker", Check: func(context.Context) error { return errors.New("disconnected") }}

	rec := doRequest(newTestRouter(&mockVideoService{}, 1<<20, ok), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"UP","database":"connected"}`, rec.Body.String())

	rec = doRequest(newTestRouter(&mockVideoService{}, 1<<20, ok, down), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"DOWN","database":"connected","broker":"error: disconnected"}`, rec.Body.String())
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	svc := &mockVideoService{}
	svc.On("ListAll", mock.Anything, "u1").Return([]domain.Video{}, nil)
	router := newTestRouter(svc, 1<<20)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("x-user-id", "u1")
	doRequest(router, req)

	rec := doRequest(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/v1/videos",status="200"} 1`)
}
