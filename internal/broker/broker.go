package broker

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"studygroups-service/internal/models"
	"studygroups-service/internal/observability"
	"studygroups-service/internal/store"
)

// ErrUnauthorized is returned when a non-member attempts a room action.
var ErrUnauthorized = errors.New("not a member of this group")

// Conn is one live client connection attached to the hub. Enqueue must not
// block; it reports false when the connection can no longer accept events.
type Conn interface {
	Enqueue(event models.RoomEvent) bool
}

// MembershipChecker authorizes room actions against the group registry.
type MembershipChecker interface {
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
}

// Hub is the pub/sub transport. Rooms map 1:1 onto group ids and come into
// existence on first subscription. Delivery is best-effort and
// unacknowledged; history replay on the next subscribe is the recovery
// mechanism.
type Hub struct {
	store      store.Store
	membership MembershipChecker
	timeout    time.Duration

	mu    sync.RWMutex
	rooms map[string]map[Conn]bool
	conns map[Conn]map[string]bool

	// orderMu serializes publishes per room so broadcast order always
	// matches persistence-success order. Rooms never contend with each
	// other.
	orderMu sync.Mutex
	order   map[string]*sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(st store.Store, membership MembershipChecker, timeout time.Duration) *Hub {
	return &Hub{
		store:      st,
		membership: membership,
		timeout:    timeout,
		rooms:      make(map[string]map[Conn]bool),
		conns:      make(map[Conn]map[string]bool),
		order:      make(map[string]*sync.Mutex),
	}
}

func (h *Hub) roomLock(groupID string) *sync.Mutex {
	h.orderMu.Lock()
	defer h.orderMu.Unlock()
	mu, ok := h.order[groupID]
	if !ok {
		mu = &sync.Mutex{}
		h.order[groupID] = mu
	}
	return mu
}

func (h *Hub) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, h.timeout)
}

// Register attaches a connection to the hub before it joins any room, so
// group lifecycle events reach clients that are not yet subscribed anywhere.
func (h *Hub) Register(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[conn]; !ok {
		h.conns[conn] = make(map[string]bool)
	}
}

// Subscribe adds the connection to the room's fan-out set and replays the
// persisted history to that connection only. Subscribing twice is a no-op:
// no duplicate replay, no duplicate live delivery.
func (h *Hub) Subscribe(ctx context.Context, conn Conn, groupID, userID string) error {
	if err := h.Authorize(ctx, groupID, userID); err != nil {
		return err
	}

	h.mu.Lock()
	if h.rooms[groupID] == nil {
		h.rooms[groupID] = make(map[Conn]bool)
	}
	if h.rooms[groupID][conn] {
		h.mu.Unlock()
		return nil
	}
	h.rooms[groupID][conn] = true
	if h.conns[conn] == nil {
		h.conns[conn] = make(map[string]bool)
	}
	h.conns[conn][groupID] = true
	h.mu.Unlock()

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()
	history, err := h.store.GetMessages(sctx, groupID)
	if err != nil {
		return err
	}
	conn.Enqueue(models.RoomEvent{Type: models.EventHistory, GroupID: groupID, Messages: history})
	observability.IncWSEvent("room", "subscribe")
	return nil
}

// Unsubscribe removes the connection from the room. It never errors, even
// when the connection was not subscribed.
func (h *Hub) Unsubscribe(conn Conn, groupID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn, groupID)
}

func (h *Hub) removeLocked(conn Conn, groupID string) {
	if room, ok := h.rooms[groupID]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, groupID)
		}
	}
	if joined, ok := h.conns[conn]; ok {
		delete(joined, groupID)
	}
}

// Disconnect drops the connection from every room's fan-out set.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for groupID := range h.conns[conn] {
		h.removeLocked(conn, groupID)
	}
	delete(h.conns, conn)
}

// Publish persists the message and, only on persistence success, delivers
// it to every subscriber of the room, the sender's own connection included.
// A persistence failure suppresses the broadcast and surfaces to the sender.
func (h *Hub) Publish(ctx context.Context, groupID, senderID string, msg models.Message) (models.Message, error) {
	if err := h.Authorize(ctx, groupID, senderID); err != nil {
		return models.Message{}, err
	}

	now := time.Now()
	if msg.ID == "" {
		msg.ID = strconv.FormatInt(now.UnixNano(), 10)
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = now.UnixMilli()
	}
	msg.GroupID = groupID
	msg.SenderID = senderID

	lock := h.roomLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := h.storeCtx(ctx)
	defer cancel()
	if err := h.store.SaveMessage(sctx, groupID, msg); err != nil {
		observability.IncStorageError("save_message")
		return models.Message{}, err
	}

	h.fanOut(groupID, models.RoomEvent{Type: models.EventMessage, GroupID: groupID, Message: &msg})
	observability.IncBroadcast("message")
	return msg, nil
}

// Authorize rejects room actions by non-members with ErrUnauthorized.
func (h *Hub) Authorize(ctx context.Context, groupID, userID string) error {
	member, err := h.membership.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !member {
		return ErrUnauthorized
	}
	return nil
}

// broadcastEvent delivers an already-persisted update to every subscriber
// of the room.
func (h *Hub) broadcastEvent(groupID string, event models.RoomEvent) {
	lock := h.roomLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	h.fanOut(groupID, event)
	observability.IncBroadcast(event.Type)
}

// Mutate serializes a fetch-mutate-persist step (poll votes, pin toggles)
// with publishes to the same room, then broadcasts the returned event.
// Without this, two concurrent whole-document updates would each persist
// over the other and silently drop one of them.
func (h *Hub) Mutate(groupID string, fn func() (models.RoomEvent, error)) error {
	lock := h.roomLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	event, err := fn()
	if err != nil {
		return err
	}
	h.fanOut(groupID, event)
	observability.IncBroadcast(event.Type)
	return nil
}

func (h *Hub) fanOut(groupID string, event models.RoomEvent) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms[groupID]))
	for conn := range h.rooms[groupID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if !conn.Enqueue(event) {
			h.Disconnect(conn)
		}
	}
}

// BroadcastAll delivers a group lifecycle event to every registered
// connection, subscribed or not.
func (h *Hub) BroadcastAll(event models.RoomEvent) {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if !conn.Enqueue(event) {
			h.Disconnect(conn)
		}
	}
	observability.IncBroadcast(event.Type)
}

// EvictRoom tears the room down after group deletion. Subscribers are told
// the group is gone before the fan-out set is dropped.
func (h *Hub) EvictRoom(groupID string) {
	h.broadcastEvent(groupID, models.RoomEvent{Type: models.EventGroupDeleted, GroupID: groupID})

	h.mu.Lock()
	for conn := range h.rooms[groupID] {
		if joined, ok := h.conns[conn]; ok {
			delete(joined, groupID)
		}
	}
	delete(h.rooms, groupID)
	h.mu.Unlock()

	h.orderMu.Lock()
	delete(h.order, groupID)
	h.orderMu.Unlock()
}
