package polls

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studygroups-service/internal/broker"
	"studygroups-service/internal/models"
	"studygroups-service/internal/registry"
	"studygroups-service/internal/store"
)

type recordingConn struct {
	mu     sync.Mutex
	events []models.RoomEvent
}

func (c *recordingConn) Enqueue(event models.RoomEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return true
}

func (c *recordingConn) eventsOfType(eventType string) []models.RoomEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.RoomEvent
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func newTestEngine(t *testing.T) (*Engine, *broker.Hub, string) {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	reg := registry.New(st, time.Second)
	hub := broker.NewHub(st, reg, time.Second)
	reg.SetNotifier(hub)
	engine := NewEngine(st, hub, time.Second)

	group, err := reg.CreateGroup(context.Background(), "room", models.GroupTypeClass, "u1")
	require.NoError(t, err)
	_, err = reg.JoinByInviteCode(context.Background(), group.InviteCode, "u2")
	require.NoError(t, err)
	return engine, hub, group.ID
}

func TestCreatePollValidatesOptionCount(t *testing.T) {
	engine, _, groupID := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"3pm"})
	require.ErrorIs(t, err, ErrInvalidPoll)

	_, err = engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"a", "b", "c", "d", "e", "f"})
	require.ErrorIs(t, err, ErrInvalidPoll)

	_, err = engine.CreatePoll(ctx, groupID, "u1", "User One", "", []string{"a", "b"})
	require.ErrorIs(t, err, ErrInvalidPoll)

	_, err = engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"a", " "})
	require.ErrorIs(t, err, ErrInvalidPoll)
}

func TestCreatePollPublishesToRoom(t *testing.T) {
	engine, hub, groupID := newTestEngine(t)
	ctx := context.Background()

	conn := &recordingConn{}
	require.NoError(t, hub.Subscribe(ctx, conn, groupID, "u2"))

	msg, err := engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"3pm", "5pm"})
	require.NoError(t, err)
	require.Equal(t, models.MessageTypePoll, msg.Type)
	require.NotNil(t, msg.PollData)
	require.Len(t, msg.PollData.Options, 2)
	require.Empty(t, msg.PollData.Votes)

	delivered := conn.eventsOfType(models.EventMessage)
	require.Len(t, delivered, 1)
	require.Equal(t, msg.ID, delivered[0].Message.ID)
}

func TestVoteRecordsAndBroadcasts(t *testing.T) {
	engine, hub, groupID := newTestEngine(t)
	ctx := context.Background()

	conn := &recordingConn{}
	require.NoError(t, hub.Subscribe(ctx, conn, groupID, "u1"))

	poll, err := engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"3pm", "5pm"})
	require.NoError(t, err)
	fivePM := poll.PollData.Options[1].ID

	updated, err := engine.Vote(ctx, groupID, poll.ID, "u2", fivePM)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"u2": fivePM}, updated.PollData.Votes)

	pct := Percentages(*updated.PollData)
	require.Equal(t, 100, pct[fivePM])
	require.Equal(t, 0, pct[poll.PollData.Options[0].ID])

	broadcasts := conn.eventsOfType(models.EventPollUpdated)
	require.Len(t, broadcasts, 1)
	require.Equal(t, poll.ID, broadcasts[0].Message.ID)
}

func TestVoteOverwritesPriorVote(t *testing.T) {
	engine, _, groupID := newTestEngine(t)
	ctx := context.Background()

	poll, err := engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"3pm", "5pm"})
	require.NoError(t, err)
	first := poll.PollData.Options[0].ID
	second := poll.PollData.Options[1].ID

	_, err = engine.Vote(ctx, groupID, poll.ID, "u2", first)
	require.NoError(t, err)
	updated, err := engine.Vote(ctx, groupID, poll.ID, "u2", second)
	require.NoError(t, err)

	require.Len(t, updated.PollData.Votes, 1)
	require.Equal(t, second, updated.PollData.Votes["u2"])
}

func TestVoteRequiresMembership(t *testing.T) {
	engine, _, groupID := newTestEngine(t)
	ctx := context.Background()

	poll, err := engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"3pm", "5pm"})
	require.NoError(t, err)

	_, err = engine.Vote(ctx, groupID, poll.ID, "stranger", poll.PollData.Options[0].ID)
	require.ErrorIs(t, err, broker.ErrUnauthorized)

	msg, err := engine.Vote(ctx, groupID, poll.ID, "u2", poll.PollData.Options[0].ID)
	require.NoError(t, err)
	require.NotContains(t, msg.PollData.Votes, "stranger")
}

func TestConcurrentVotesAllRecorded(t *testing.T) {
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "data.json"))
	require.NoError(t, err)
	reg := registry.New(st, time.Second)
	hub := broker.NewHub(st, reg, time.Second)
	reg.SetNotifier(hub)
	engine := NewEngine(st, hub, time.Second)
	ctx := context.Background()

	group, err := reg.CreateGroup(ctx, "room", models.GroupTypeClass, "u1")
	require.NoError(t, err)

	const voters = 8
	for i := 0; i < voters; i++ {
		_, err := reg.JoinByInviteCode(ctx, group.InviteCode, fmt.Sprintf("v%d", i))
		require.NoError(t, err)
	}

	poll, err := engine.CreatePoll(ctx, group.ID, "u1", "User One", "Which slot?", []string{"3pm", "5pm"})
	require.NoError(t, err)

	errs := make(chan error, voters)
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(voter string) {
			defer wg.Done()
			_, err := engine.Vote(ctx, group.ID, poll.ID, voter, poll.PollData.Options[0].ID)
			errs <- err
		}(fmt.Sprintf("v%d", i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	msg, err := st.GetMessage(ctx, group.ID, poll.ID)
	require.NoError(t, err)
	require.Len(t, msg.PollData.Votes, voters, "every concurrent vote must survive")
}

func TestVoteInvalidOption(t *testing.T) {
	engine, _, groupID := newTestEngine(t)
	ctx := context.Background()

	poll, err := engine.CreatePoll(ctx, groupID, "u1", "User One", "Which slot?", []string{"3pm", "5pm"})
	require.NoError(t, err)

	_, err = engine.Vote(ctx, groupID, poll.ID, "u2", "opt-99")
	require.ErrorIs(t, err, ErrInvalidOption)
}

func TestVoteUnknownMessage(t *testing.T) {
	engine, _, groupID := newTestEngine(t)

	_, err := engine.Vote(context.Background(), groupID, "missing", "u2", "opt-0")
	require.ErrorIs(t, err, store.ErrMessageNotFound)
}

func TestVoteOnTextMessage(t *testing.T) {
	engine, hub, groupID := newTestEngine(t)
	ctx := context.Background()

	msg, err := hub.Publish(ctx, groupID, "u1", models.Message{Text: "not a poll"})
	require.NoError(t, err)

	_, err = engine.Vote(ctx, groupID, msg.ID, "u2", "opt-0")
	require.ErrorIs(t, err, ErrInvalidPoll)
}

func TestPercentagesRounding(t *testing.T) {
	pd := models.PollData{
		Options: []models.PollOption{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Votes: map[string]string{
			"u1": "a",
			"u2": "a",
			"u3": "b",
		},
	}
	pct := Percentages(pd)
	require.Equal(t, 67, pct["a"])
	require.Equal(t, 33, pct["b"])
	require.Equal(t, 0, pct["c"])
}

func TestPercentagesZeroVotes(t *testing.T) {
	pd := models.PollData{Options: []models.PollOption{{ID: "a"}, {ID: "b"}}}
	pct := Percentages(pd)
	require.Equal(t, map[string]int{"a": 0, "b": 0}, pct)
}
