package blob

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"studygroups-service/internal/store"
)

func newLocalStorage(t *testing.T) *LocalStorage {
	t.Helper()
	fs, err := store.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	return NewLocalStorage(fs)
}

func TestLocalUploadAndGetRoundTrip(t *testing.T) {
	s := newLocalStorage(t)
	ctx := context.Background()

	// "hello" base64-encoded.
	result, err := s.UploadFile(ctx, "note.txt", "text/plain", "data:text/plain;base64,aGVsbG8=")
	require.NoError(t, err)
	require.Equal(t, "note.txt", result.Name)
	require.Equal(t, "other", result.Type)
	require.True(t, strings.HasPrefix(result.URL, "/api/files/"))

	fileID := strings.TrimPrefix(result.URL, "/api/files/")
	file, err := s.GetFile(ctx, fileID)
	require.NoError(t, err)
	require.Equal(t, "text/plain", file.Type)
	require.Equal(t, []byte("hello"), file.Data)
}

func TestLocalGetFileMissing(t *testing.T) {
	s := newLocalStorage(t)

	_, err := s.GetFile(context.Background(), "missing")
	require.ErrorIs(t, err, ErrFileNotFound)
}

func TestAttachmentType(t *testing.T) {
	require.Equal(t, "image", AttachmentType("image/png", "pic.png"))
	require.Equal(t, "video", AttachmentType("video/mp4", "clip.mp4"))
	require.Equal(t, "audio", AttachmentType("audio/mpeg", "song.mp3"))
	require.Equal(t, "pdf", AttachmentType("application/pdf", "doc.pdf"))
	require.Equal(t, "pdf", AttachmentType("application/octet-stream", "doc.pdf"))
	require.Equal(t, "docx", AttachmentType("application/vnd.openxmlformats-officedocument.wordprocessingml.document", "doc.docx"))
	require.Equal(t, "doc", AttachmentType("application/msword", "doc.doc"))
	require.Equal(t, "other", AttachmentType("application/zip", "archive.zip"))
}

func TestDecodeDataURL(t *testing.T) {
	mimeType, data, err := decodeDataURL("data:image/png;base64,aGk=")
	require.NoError(t, err)
	require.Equal(t, "image/png", mimeType)
	require.Equal(t, []byte("hi"), data)

	_, _, err = decodeDataURL("not a data url")
	require.Error(t, err)

	_, _, err = decodeDataURL("data:image/png;base64,!!!")
	require.Error(t, err)
}
