package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"studygroups-service/internal/broker"
	"studygroups-service/internal/models"
	"studygroups-service/internal/observability"
	"studygroups-service/internal/polls"
	"studygroups-service/internal/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Command is a client request on the websocket connection.
type Command struct {
	Action    string          `json:"action"`
	GroupID   string          `json:"groupId,omitempty"`
	Message   *models.Message `json:"message,omitempty"`
	MessageID string          `json:"messageId,omitempty"`
	OptionID  string          `json:"optionId,omitempty"`
	Question  string          `json:"question,omitempty"`
	Options   []string        `json:"options,omitempty"`
}

// Client actions.
const (
	ActionJoinGroup   = "join_group"
	ActionLeaveGroup  = "leave_group"
	ActionSendMessage = "send_message"
	ActionCreatePoll  = "create_poll"
	ActionUpdatePoll  = "update_poll"
)

// Handler upgrades websocket connections and dispatches client commands to
// the broker and poll engine.
type Handler struct {
	hub    *broker.Hub
	engine *polls.Engine
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *broker.Hub, engine *polls.Engine) *Handler {
	return &Handler{hub: hub, engine: engine}
}

// Handle upgrades the connection and runs the read loop.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("studygroups-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID := c.Query("user_id")
	if userID == "" {
		userID = c.GetHeader("X-User-ID")
	}
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}
	userName := c.Query("user_name")
	if userName == "" {
		userName = c.GetHeader("X-User-Name")
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := newClient(conn, userID, userName)
	h.hub.Register(client)

	observability.IncWSActive()
	observability.IncWSEvent("conn", "ws_connect")
	requestID := observability.RequestIDFromRequest(c.Request)
	traceID := span.SpanContext().TraceID().String()
	observability.PublishWSEvent(ctx, "ws_events.connections", observability.WSEvent{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload: map[string]any{
			"user_id": userID,
			"ip":      observability.IPFromRequest(c.Request),
		},
	}, observability.EventHeaders(requestID, traceID))

	go client.writePump()
	go h.readPump(client)
}

func (h *Handler) readPump(client *Client) {
	// Commands run under a per-connection context so in-flight store calls
	// are cancelled when the connection goes away.
	ctx, cancel := context.WithCancel(context.Background())
	connectedAt := time.Now()
	defer func() {
		cancel()
		h.hub.Disconnect(client)
		client.close()
		observability.DecWSActive()
		observability.IncWSEvent("conn", "ws_disconnect")
		observability.PublishWSEvent(context.Background(), "ws_events.connections", observability.WSEvent{
			EventType: "ws_events",
			EventName: "ws_disconnect",
			Payload: map[string]any{
				"user_id":     client.userID,
				"duration_ms": time.Since(connectedAt).Milliseconds(),
			},
		}, nil)
	}()

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd Command
		if err := json.Unmarshal(payload, &cmd); err != nil {
			client.Enqueue(models.RoomEvent{Type: models.EventError, Error: "malformed command"})
			continue
		}
		h.dispatch(ctx, client, cmd)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, cmd Command) {
	switch cmd.Action {
	case ActionJoinGroup:
		if err := h.hub.Subscribe(ctx, client, cmd.GroupID, client.userID); err != nil {
			h.sendError(client, cmd, err)
		}

	case ActionLeaveGroup:
		h.hub.Unsubscribe(client, cmd.GroupID)

	case ActionSendMessage:
		msg := models.Message{}
		if cmd.Message != nil {
			msg = *cmd.Message
		}
		if msg.Type == models.MessageTypePoll && msg.PollData != nil {
			// Polls sent through the generic path still go through the
			// engine so option validation applies.
			options := make([]string, 0, len(msg.PollData.Options))
			for _, o := range msg.PollData.Options {
				options = append(options, o.Text)
			}
			if _, err := h.engine.CreatePoll(ctx, cmd.GroupID, client.userID, client.userName, msg.PollData.Question, options); err != nil {
				h.sendError(client, cmd, err)
			}
			return
		}
		msg.SenderName = client.userName
		if msg.Type == "" {
			msg.Type = models.MessageTypeText
		}
		if _, err := h.hub.Publish(ctx, cmd.GroupID, client.userID, msg); err != nil {
			h.sendError(client, cmd, err)
		}

	case ActionCreatePoll:
		if _, err := h.engine.CreatePoll(ctx, cmd.GroupID, client.userID, client.userName, cmd.Question, cmd.Options); err != nil {
			h.sendError(client, cmd, err)
		}

	case ActionUpdatePoll:
		if _, err := h.engine.Vote(ctx, cmd.GroupID, cmd.MessageID, client.userID, cmd.OptionID); err != nil {
			h.sendError(client, cmd, err)
		}

	default:
		client.Enqueue(models.RoomEvent{Type: models.EventError, Error: "unknown action"})
	}
}

// sendError reports a failed command to the issuing connection only; errors
// are never broadcast.
func (h *Handler) sendError(client *Client, cmd Command, err error) {
	observability.IncWSEvent("conn", "command_error")
	client.Enqueue(models.RoomEvent{
		Type:    models.EventError,
		GroupID: cmd.GroupID,
		Error:   errorMessage(err),
	})
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, broker.ErrUnauthorized):
		return "not a member of this group"
	case errors.Is(err, polls.ErrInvalidPoll):
		return "invalid poll"
	case errors.Is(err, polls.ErrInvalidOption):
		return "invalid poll option"
	case errors.Is(err, store.ErrMessageNotFound):
		return "message not found"
	case errors.Is(err, store.ErrGroupNotFound):
		return "group not found"
	case errors.Is(err, store.ErrStorageUnavailable):
		return "storage unavailable, retry the operation"
	default:
		return "internal error"
	}
}
