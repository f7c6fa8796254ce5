package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jmoiron/sqlx"

	"studygroups-service/internal/models"
)

// PostgresStore persists groups and messages as JSONB documents in two
// tables created idempotently at startup (internal/db).
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// GetGroups returns all groups keyed by id.
func (s *PostgresStore) GetGroups(ctx context.Context) (map[string]models.Group, error) {
	rows, err := s.db.QueryxContext(ctx, `SELECT data FROM groups`)
	if err != nil {
		return nil, unavailable("get groups", err)
	}
	defer rows.Close()

	groups := make(map[string]models.Group)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable("get groups", err)
		}
		var group models.Group
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, unavailable("get groups", err)
		}
		groups[group.ID] = group
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get groups", err)
	}
	return groups, nil
}

// SaveGroup upserts the group document.
func (s *PostgresStore) SaveGroup(ctx context.Context, group models.Group) error {
	raw, err := json.Marshal(group)
	if err != nil {
		return unavailable("save group", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO groups (id, data) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET data = $2`,
		group.ID, raw); err != nil {
		return unavailable("save group", err)
	}
	return nil
}

// GetMessages returns the group's messages ascending by creation time.
func (s *PostgresStore) GetMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT data FROM messages WHERE group_id=$1 ORDER BY created_at ASC, id ASC`, groupID)
	if err != nil {
		return nil, unavailable("get messages", err)
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, unavailable("get messages", err)
		}
		var msg models.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, unavailable("get messages", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("get messages", err)
	}
	return msgs, nil
}

// GetMessage fetches a single message.
func (s *PostgresStore) GetMessage(ctx context.Context, groupID, messageID string) (models.Message, error) {
	var raw []byte
	err := s.db.GetContext(ctx, &raw,
		`SELECT data FROM messages WHERE id=$1 AND group_id=$2`, messageID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, unavailable("get message", err)
	}
	var msg models.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.Message{}, unavailable("get message", err)
	}
	return msg, nil
}

// SaveMessage appends a message row.
func (s *PostgresStore) SaveMessage(ctx context.Context, groupID string, msg models.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return unavailable("save message", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, group_id, data, created_at) VALUES ($1, $2, $3, $4)`,
		msg.ID, groupID, raw, msg.CreatedAt); err != nil {
		return unavailable("save message", err)
	}
	return nil
}

// UpdateMessage replaces the message document wholesale.
func (s *PostgresStore) UpdateMessage(ctx context.Context, groupID, messageID string, msg models.Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return unavailable("update message", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET data=$1 WHERE id=$2 AND group_id=$3`, raw, messageID, groupID)
	if err != nil {
		return unavailable("update message", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return unavailable("update message", err)
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// DeleteGroup removes the group and its messages atomically.
func (s *PostgresStore) DeleteGroup(ctx context.Context, groupID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("delete group", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM messages WHERE group_id=$1`, groupID); err != nil {
		return unavailable("delete group", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID); err != nil {
		return unavailable("delete group", err)
	}
	if err = tx.Commit(); err != nil {
		return unavailable("delete group", err)
	}
	return nil
}
