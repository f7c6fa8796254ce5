package polls

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"studygroups-service/internal/broker"
	"studygroups-service/internal/models"
	"studygroups-service/internal/store"
)

var (
	ErrInvalidPoll   = errors.New("invalid poll")
	ErrInvalidOption = errors.New("invalid poll option")
)

const (
	minOptions = 2
	maxOptions = 5
)

// Engine creates polls and applies votes. Polls travel through the broker
// like any other message; votes mutate the embedded vote map in place with
// last-write-wins semantics.
type Engine struct {
	store   store.Store
	hub     *broker.Hub
	timeout time.Duration
}

// NewEngine constructs a poll engine.
func NewEngine(st store.Store, hub *broker.Hub, timeout time.Duration) *Engine {
	return &Engine{store: st, hub: hub, timeout: timeout}
}

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.timeout)
}

// CreatePoll validates the option set, builds a poll message with an empty
// vote map and publishes it through the broker.
func (e *Engine) CreatePoll(ctx context.Context, groupID, senderID, senderName, question string, options []string) (models.Message, error) {
	if strings.TrimSpace(question) == "" {
		return models.Message{}, fmt.Errorf("%w: empty question", ErrInvalidPoll)
	}
	if len(options) < minOptions || len(options) > maxOptions {
		return models.Message{}, fmt.Errorf("%w: need %d-%d options, got %d", ErrInvalidPoll, minOptions, maxOptions, len(options))
	}
	pollOptions := make([]models.PollOption, 0, len(options))
	for i, text := range options {
		if strings.TrimSpace(text) == "" {
			return models.Message{}, fmt.Errorf("%w: empty option", ErrInvalidPoll)
		}
		pollOptions = append(pollOptions, models.PollOption{ID: fmt.Sprintf("opt-%d", i), Text: text})
	}

	msg := models.Message{
		SenderName: senderName,
		Type:       models.MessageTypePoll,
		PollData: &models.PollData{
			Question: question,
			Options:  pollOptions,
			Votes:    map[string]string{},
		},
	}
	return e.hub.Publish(ctx, groupID, senderID, msg)
}

// Vote records voterID's choice, overwriting any prior vote, persists the
// updated message and broadcasts it to the whole room so every client
// recomputes percentages consistently. The fetch-mutate-persist runs under
// the room's publish lock so concurrent votes never overwrite each other.
func (e *Engine) Vote(ctx context.Context, groupID, messageID, voterID, optionID string) (models.Message, error) {
	if err := e.hub.Authorize(ctx, groupID, voterID); err != nil {
		return models.Message{}, err
	}

	var updated models.Message
	err := e.hub.Mutate(groupID, func() (models.RoomEvent, error) {
		sctx, cancel := e.storeCtx(ctx)
		defer cancel()

		msg, err := e.store.GetMessage(sctx, groupID, messageID)
		if err != nil {
			return models.RoomEvent{}, err
		}
		if msg.Type != models.MessageTypePoll || msg.PollData == nil {
			return models.RoomEvent{}, fmt.Errorf("%w: message %s is not a poll", ErrInvalidPoll, messageID)
		}
		if !msg.PollData.HasOption(optionID) {
			return models.RoomEvent{}, fmt.Errorf("%w: %s", ErrInvalidOption, optionID)
		}

		if msg.PollData.Votes == nil {
			msg.PollData.Votes = map[string]string{}
		}
		msg.PollData.Votes[voterID] = optionID

		if err := e.store.UpdateMessage(sctx, groupID, messageID, msg); err != nil {
			return models.RoomEvent{}, err
		}
		updated = msg
		return models.RoomEvent{Type: models.EventPollUpdated, GroupID: groupID, Message: &msg}, nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return updated, nil
}

// Percentages computes the displayed integer percentage per option id:
// votes for the option over total votes cast, rounded to nearest. With zero
// votes every option shows 0.
func Percentages(pd models.PollData) map[string]int {
	result := make(map[string]int, len(pd.Options))
	for _, o := range pd.Options {
		result[o.ID] = 0
	}
	total := len(pd.Votes)
	if total == 0 {
		return result
	}
	for _, optionID := range pd.Votes {
		result[optionID]++
	}
	for id, count := range result {
		result[id] = int(math.Round(float64(count) / float64(total) * 100))
	}
	return result
}
