package blob

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"studygroups-service/internal/store"
)

// LocalStorage keeps uploaded payloads inside the same data document used by
// the fallback persistence backend, keyed by a generated file id. Bytes are
// served back through GET /api/files/:file_id.
type LocalStorage struct {
	files *store.FileStore
}

// NewLocalStorage constructs a LocalStorage on top of the shared file store.
func NewLocalStorage(files *store.FileStore) *LocalStorage {
	return &LocalStorage{files: files}
}

// UploadFile stores the encoded payload and returns a service-local URL.
func (s *LocalStorage) UploadFile(ctx context.Context, name, mimeType, payload string) (UploadResult, error) {
	fileID := uuid.NewString()
	rec := store.FileRecord{Name: name, Type: mimeType, Payload: payload}
	if err := s.files.SaveFile(fileID, rec); err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return UploadResult{
		URL:  "/api/files/" + fileID,
		Name: name,
		Type: AttachmentType(mimeType, name),
	}, nil
}

// GetFile decodes the stored payload into raw bytes.
func (s *LocalStorage) GetFile(ctx context.Context, fileID string) (File, error) {
	rec, ok := s.files.GetFile(fileID)
	if !ok {
		return File{}, ErrFileNotFound
	}
	mimeType, data, err := decodeDataURL(rec.Payload)
	if err != nil {
		return File{}, ErrFileNotFound
	}
	return File{Type: mimeType, Data: data}, nil
}
