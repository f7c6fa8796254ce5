package store

import (
	"context"
	"errors"
	"fmt"

	"studygroups-service/internal/models"
)

var (
	// ErrStorageUnavailable covers any backend I/O failure, including
	// deadline expiry on backend calls.
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrGroupNotFound      = errors.New("group not found")
	ErrMessageNotFound    = errors.New("message not found")
)

// Store abstracts durable persistence of groups and messages. Two backends
// implement it with identical observable behavior: a Postgres document store
// and a single-file local fallback.
type Store interface {
	// GetGroups returns every known group keyed by id. An empty map means
	// no groups, not an error.
	GetGroups(ctx context.Context) (map[string]models.Group, error)
	// SaveGroup upserts the whole group document keyed by id.
	SaveGroup(ctx context.Context, group models.Group) error
	// GetMessages returns a group's messages ascending by createdAt. An
	// unknown group yields an empty slice, never an error.
	GetMessages(ctx context.Context, groupID string) ([]models.Message, error)
	// GetMessage fetches one message or ErrMessageNotFound.
	GetMessage(ctx context.Context, groupID, messageID string) (models.Message, error)
	// SaveMessage appends a message. Failures propagate so the caller can
	// suppress the broadcast.
	SaveMessage(ctx context.Context, groupID string, msg models.Message) error
	// UpdateMessage replaces the persisted message document wholesale, or
	// fails with ErrMessageNotFound.
	UpdateMessage(ctx context.Context, groupID, messageID string, msg models.Message) error
	// DeleteGroup removes the group document and its message history.
	DeleteGroup(ctx context.Context, groupID string) error
}

// unavailable wraps a backend failure so callers can match on
// ErrStorageUnavailable while keeping the cause in the message.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
