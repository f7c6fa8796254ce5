package observability

import (
	"context"
	"net"
	"net/http"
	"strings"

	"studygroups-service/internal/rabbitmq"
)

// WSEvent is the envelope published to the events exchange for websocket
// lifecycle events (connects, disconnects).
type WSEvent struct {
	EventType string         `json:"event_type"`
	EventName string         `json:"event_name"`
	Payload   map[string]any `json:"payload"`
}

var eventPublisher rabbitmq.Publisher

// SetEventPublisher wires the AMQP sink for websocket lifecycle events.
// Called once during wiring; leaving it unset keeps event publishing off.
func SetEventPublisher(p rabbitmq.Publisher) {
	eventPublisher = p
}

// PublishWSEvent publishes a lifecycle event. Failures only bump the error
// counter; event delivery is never allowed to affect the connection.
func PublishWSEvent(ctx context.Context, routingKey string, event WSEvent, headers map[string]string) {
	if eventPublisher == nil {
		return
	}
	if err := eventPublisher.Publish(ctx, routingKey, event, headers); err != nil {
		IncAMQPPublishError()
	}
}

// EventHeaders correlates a published event with its originating request
// and trace.
func EventHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// IPFromRequest resolves the client address, preferring the first
// X-Forwarded-For hop when a proxy sits in front.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
