package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"studygroups-service/internal/blob"
	"studygroups-service/internal/models"
)

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) GetGroups(ctx context.Context) (map[string]models.Group, error) {
	args := m.Called(ctx)
	var groups map[string]models.Group
	if val := args.Get(0); val != nil {
		groups = val.(map[string]models.Group)
	}
	return groups, args.Error(1)
}

func (m *StoreMock) SaveGroup(ctx context.Context, group models.Group) error {
	args := m.Called(ctx, group)
	return args.Error(0)
}

func (m *StoreMock) GetMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	args := m.Called(ctx, groupID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *StoreMock) GetMessage(ctx context.Context, groupID, messageID string) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *StoreMock) SaveMessage(ctx context.Context, groupID string, msg models.Message) error {
	args := m.Called(ctx, groupID, msg)
	return args.Error(0)
}

func (m *StoreMock) UpdateMessage(ctx context.Context, groupID, messageID string, msg models.Message) error {
	args := m.Called(ctx, groupID, messageID, msg)
	return args.Error(0)
}

func (m *StoreMock) DeleteGroup(ctx context.Context, groupID string) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

type BlobStorageMock struct {
	mock.Mock
}

func (m *BlobStorageMock) UploadFile(ctx context.Context, name, mimeType, payload string) (blob.UploadResult, error) {
	args := m.Called(ctx, name, mimeType, payload)
	var result blob.UploadResult
	if val := args.Get(0); val != nil {
		result = val.(blob.UploadResult)
	}
	return result, args.Error(1)
}

func (m *BlobStorageMock) GetFile(ctx context.Context, fileID string) (blob.File, error) {
	args := m.Called(ctx, fileID)
	var file blob.File
	if val := args.Get(0); val != nil {
		file = val.(blob.File)
	}
	return file, args.Error(1)
}
