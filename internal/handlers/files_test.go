package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"studygroups-service/internal/blob"
	"studygroups-service/internal/mocks"
)

func setupFileRouter(storage blob.Storage) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewFileHandler(storage, time.Second, nil)

	r := gin.New()
	r.POST("/api/upload", handler.Upload)
	r.GET("/api/files/:file_id", handler.GetFile)
	r.GET("/api/health", Health)
	return r
}

func TestUploadSuccess(t *testing.T) {
	storage := new(mocks.BlobStorageMock)
	router := setupFileRouter(storage)

	storage.On("UploadFile", mock.Anything, "pic.png", "image/png", "data:image/png;base64,aGk=").
		Return(blob.UploadResult{URL: "/api/files/f1", Name: "pic.png", Type: "image"}, nil).Once()

	body := bytes.NewBufferString(`{"name":"pic.png","type":"image/png","data":"data:image/png;base64,aGk="}`)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/api/files/f1")
	storage.AssertExpectations(t)
}

func TestUploadFailure(t *testing.T) {
	storage := new(mocks.BlobStorageMock)
	router := setupFileRouter(storage)

	storage.On("UploadFile", mock.Anything, "pic.png", "image/png", mock.Anything).
		Return(blob.UploadResult{}, blob.ErrUploadFailed).Once()

	body := bytes.NewBufferString(`{"name":"pic.png","type":"image/png","data":"data:image/png;base64,aGk="}`)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUploadMissingFields(t *testing.T) {
	router := setupFileRouter(new(mocks.BlobStorageMock))

	req := httptest.NewRequest(http.MethodPost, "/api/upload", bytes.NewBufferString(`{"name":"pic.png"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetFileNotFound(t *testing.T) {
	storage := new(mocks.BlobStorageMock)
	router := setupFileRouter(storage)

	storage.On("GetFile", mock.Anything, "missing").Return(blob.File{}, blob.ErrFileNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/files/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFileServesBytes(t *testing.T) {
	storage := new(mocks.BlobStorageMock)
	router := setupFileRouter(storage)

	storage.On("GetFile", mock.Anything, "f1").
		Return(blob.File{Type: "image/png", Data: []byte("hi")}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/files/f1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	require.Equal(t, "hi", rec.Body.String())
}

func TestHealth(t *testing.T) {
	router := setupFileRouter(new(mocks.BlobStorageMock))

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}
