package models

// Event names emitted over websocket connections.
const (
	EventHistory        = "history"
	EventMessage        = "receive_message"
	EventMessageUpdated = "message_updated"
	EventPollUpdated    = "poll_updated"
	EventGroupCreated   = "group_created"
	EventGroupUpdated   = "group_updated"
	EventGroupDeleted   = "group_deleted"
	EventError          = "error"
)

// RoomEvent is broadcast to room subscribers.
type RoomEvent struct {
	Type     string    `json:"type"`
	GroupID  string    `json:"groupId,omitempty"`
	Message  *Message  `json:"message,omitempty"`
	Messages []Message `json:"messages,omitempty"`
	Group    *Group    `json:"group,omitempty"`
	Error    string    `json:"error,omitempty"`
}
