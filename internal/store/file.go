package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"studygroups-service/internal/models"
)

// FileRecord is an uploaded file kept in the local data document for the
// fallback blob backend. Payload is the self-describing encoded blob as
// received (data URL with MIME prefix).
type FileRecord struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

type fileDocument struct {
	Groups   map[string]models.Group     `json:"groups"`
	Messages map[string][]models.Message `json:"messages"`
	Files    map[string]FileRecord       `json:"files"`
}

// FileStore is the local single-file fallback backend. The whole document is
// read into memory at startup and rewritten atomically on every mutation.
// All access is serialized through one mutex; the backend is single-process
// by design and not safe for concurrent writers in other processes.
type FileStore struct {
	path string

	mu  sync.Mutex
	doc fileDocument
}

// NewFileStore loads (or initializes) the data document at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path: path,
		doc: fileDocument{
			Groups:   make(map[string]models.Group),
			Messages: make(map[string][]models.Message),
			Files:    make(map[string]FileRecord),
		},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	if err := json.Unmarshal(raw, &s.doc); err != nil {
		return nil, fmt.Errorf("parse data file: %w", err)
	}
	if s.doc.Groups == nil {
		s.doc.Groups = make(map[string]models.Group)
	}
	if s.doc.Messages == nil {
		s.doc.Messages = make(map[string][]models.Message)
	}
	if s.doc.Files == nil {
		s.doc.Files = make(map[string]FileRecord)
	}
	return s, nil
}

// cloneMessage copies the pointer-valued parts of a message so callers and
// the in-memory document never share mutable state. Without this a vote
// mutating a poll's vote map would race history replay marshaling the same
// map, and caller-side mutations would show up in reads before being
// persisted.
func cloneMessage(m models.Message) models.Message {
	if m.Attachment != nil {
		att := *m.Attachment
		m.Attachment = &att
	}
	if m.PollData != nil {
		pd := models.PollData{
			Question: m.PollData.Question,
			Options:  append([]models.PollOption(nil), m.PollData.Options...),
		}
		if m.PollData.Votes != nil {
			pd.Votes = make(map[string]string, len(m.PollData.Votes))
			for voter, option := range m.PollData.Votes {
				pd.Votes[voter] = option
			}
		}
		m.PollData = &pd
	}
	return m
}

func cloneGroup(g models.Group) models.Group {
	g.Members = append([]string(nil), g.Members...)
	return g
}

// save rewrites the document atomically. Callers hold s.mu.
func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return unavailable("write data file", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".data-*.json")
	if err != nil {
		return unavailable("write data file", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return unavailable("write data file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return unavailable("write data file", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return unavailable("write data file", err)
	}
	return nil
}

// GetGroups returns a copy of all groups keyed by id.
func (s *FileStore) GetGroups(ctx context.Context) (map[string]models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups := make(map[string]models.Group, len(s.doc.Groups))
	for id, g := range s.doc.Groups {
		groups[id] = cloneGroup(g)
	}
	return groups, nil
}

// SaveGroup upserts the group document and rewrites the file.
func (s *FileStore) SaveGroup(ctx context.Context, group models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Groups[group.ID] = cloneGroup(group)
	return s.save()
}

// GetMessages returns the group's messages, ascending by creation time with
// ties kept in insertion order.
func (s *FileStore) GetMessages(ctx context.Context, groupID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]models.Message, 0, len(s.doc.Messages[groupID]))
	for _, m := range s.doc.Messages[groupID] {
		msgs = append(msgs, cloneMessage(m))
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt < msgs[j].CreatedAt
	})
	return msgs, nil
}

// GetMessage fetches one message or ErrMessageNotFound.
func (s *FileStore) GetMessage(ctx context.Context, groupID, messageID string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.doc.Messages[groupID] {
		if m.ID == messageID {
			return cloneMessage(m), nil
		}
	}
	return models.Message{}, ErrMessageNotFound
}

// SaveMessage appends and rewrites the file.
func (s *FileStore) SaveMessage(ctx context.Context, groupID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Messages[groupID] = append(s.doc.Messages[groupID], cloneMessage(msg))
	return s.save()
}

// UpdateMessage replaces the stored message in place.
func (s *FileStore) UpdateMessage(ctx context.Context, groupID, messageID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.doc.Messages[groupID]
	for i, m := range msgs {
		if m.ID == messageID {
			msgs[i] = cloneMessage(msg)
			return s.save()
		}
	}
	return ErrMessageNotFound
}

// DeleteGroup drops the group and its message history.
func (s *FileStore) DeleteGroup(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.doc.Groups, groupID)
	delete(s.doc.Messages, groupID)
	return s.save()
}

// SaveFile stores an uploaded file record for the fallback blob backend.
func (s *FileStore) SaveFile(fileID string, rec FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Files[fileID] = rec
	return s.save()
}

// GetFile returns a stored file record.
func (s *FileStore) GetFile(fileID string) (FileRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.doc.Files[fileID]
	return rec, ok
}
