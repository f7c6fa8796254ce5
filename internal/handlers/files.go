package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"studygroups-service/internal/blob"
	"studygroups-service/internal/telemetry"
)

// FileHandler manages attachment uploads and, for the local backend,
// serving stored bytes back.
type FileHandler struct {
	storage blob.Storage
	timeout time.Duration
	audit   *telemetry.AuditEmitter
}

// NewFileHandler constructs a FileHandler.
func NewFileHandler(storage blob.Storage, timeout time.Duration, audit *telemetry.AuditEmitter) *FileHandler {
	return &FileHandler{storage: storage, timeout: timeout, audit: audit}
}

// Upload handles POST /api/upload. The payload is a self-describing encoded
// blob; either a resolvable URL comes back or nothing is stored.
func (h *FileHandler) Upload(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
		Type string `json:"type"`
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	result, err := h.storage.UploadFile(ctx, req.Name, req.Type, req.Data)
	if err != nil {
		h.emitAudit(c, "ERROR", "upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	h.emitAudit(c, "INFO", "File uploaded")
	c.JSON(http.StatusOK, result)
}

// GetFile handles GET /api/files/:file_id. Only the local backend proxies
// bytes; the cloud backend serves files through direct URLs.
func (h *FileHandler) GetFile(c *gin.Context) {
	file, err := h.storage.GetFile(c.Request.Context(), c.Param("file_id"))
	if errors.Is(err, blob.ErrFileNotFound) || errors.Is(err, blob.ErrNotProxied) {
		c.String(http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "error retrieving file")
		return
	}

	c.Data(http.StatusOK, file.Type, file.Data)
}

// Health handles GET /api/health.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *FileHandler) emitAudit(c *gin.Context, level, text string) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
