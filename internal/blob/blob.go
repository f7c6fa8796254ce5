package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUploadFailed = errors.New("upload failed")
	ErrFileNotFound = errors.New("file not found")
	// ErrNotProxied means the backend serves files through direct URLs and
	// does not proxy bytes through this service.
	ErrNotProxied = errors.New("files are served directly by the storage backend")
)

// UploadResult is what callers embed into a message attachment.
type UploadResult struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// File holds raw bytes for backends that proxy retrieval.
type File struct {
	Type string
	Data []byte
}

// Storage abstracts attachment byte storage. Uploads either register a
// resolvable URL or store nothing at all.
type Storage interface {
	UploadFile(ctx context.Context, name, mimeType, payload string) (UploadResult, error)
	GetFile(ctx context.Context, fileID string) (File, error)
}

// decodeDataURL splits a data URL ("data:<mime>;base64,<data>") into its
// MIME type and decoded bytes.
func decodeDataURL(payload string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(payload, "data:")
	if !ok {
		return "", nil, fmt.Errorf("payload is not a data url")
	}
	mimeType, encoded, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("payload is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("decode payload: %w", err)
	}
	return mimeType, data, nil
}

// AttachmentType maps a MIME type and file name onto the attachment
// categories clients render.
func AttachmentType(mimeType, name string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	case mimeType == "application/pdf":
		return "pdf"
	}
	switch {
	case strings.HasSuffix(name, ".docx"):
		return "docx"
	case strings.HasSuffix(name, ".doc"):
		return "doc"
	case strings.HasSuffix(name, ".pdf"):
		return "pdf"
	}
	return "other"
}
