package registry

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studygroups-service/internal/models"
	"studygroups-service/internal/store"
)

var (
	ErrInvalidInviteCode = errors.New("invalid invite code")
	// ErrForbidden is returned when a non-owner attempts to delete a group.
	ErrForbidden = errors.New("forbidden")
)

// Invite codes avoid characters that read ambiguously when typed by hand.
const inviteCodeCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
const inviteCodeLength = 6

// Notifier lets the registry push group lifecycle events to live
// connections without depending on the broker package.
type Notifier interface {
	BroadcastAll(event models.RoomEvent)
	EvictRoom(groupID string)
}

// Registry owns group identity, invite codes and membership, layered on the
// persistence port. Group mutations are whole-document read-modify-writes,
// so mu serializes them; two concurrent joins must not drop a member and
// two concurrent creates must not issue the same invite code.
type Registry struct {
	store    store.Store
	notifier Notifier
	timeout  time.Duration

	mu sync.Mutex
}

// New constructs a Registry. notifier may be nil in tests.
func New(st store.Store, timeout time.Duration) *Registry {
	return &Registry{store: st, timeout: timeout}
}

// SetNotifier attaches the live-event sink. Called once during wiring.
func (r *Registry) SetNotifier(n Notifier) {
	r.notifier = n
}

func (r *Registry) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, r.timeout)
}

// CreateGroup creates a group with a fresh invite code and the creator as
// its only member.
func (r *Registry) CreateGroup(ctx context.Context, name, groupType, creatorID string) (models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	code, err := r.newInviteCode(sctx)
	if err != nil {
		return models.Group{}, err
	}

	group := models.Group{
		ID:         uuid.NewString(),
		Name:       name,
		InviteCode: code,
		Members:    []string{creatorID},
		CreatedBy:  creatorID,
		CreatedAt:  time.Now().UnixMilli(),
		Type:       groupType,
	}
	if err := r.store.SaveGroup(sctx, group); err != nil {
		return models.Group{}, err
	}

	if r.notifier != nil {
		r.notifier.BroadcastAll(models.RoomEvent{Type: models.EventGroupCreated, Group: &group})
	}
	return group, nil
}

// newInviteCode generates a short human-typeable code, retrying on the
// unlikely collision with an existing group.
func (r *Registry) newInviteCode(ctx context.Context) (string, error) {
	groups, err := r.store.GetGroups(ctx)
	if err != nil {
		return "", err
	}
	taken := make(map[string]bool, len(groups))
	for _, g := range groups {
		taken[strings.ToUpper(g.InviteCode)] = true
	}

	for attempt := 0; attempt < 10; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if !taken[code] {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique invite code")
}

func randomCode() (string, error) {
	buf := make([]byte, inviteCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = inviteCodeCharset[int(b)%len(inviteCodeCharset)]
	}
	return string(buf), nil
}

// JoinByInviteCode adds userID to the group matching code. The lookup is
// case-insensitive; joining a group the user already belongs to is a no-op.
func (r *Registry) JoinByInviteCode(ctx context.Context, code, userID string) (models.Group, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	groups, err := r.store.GetGroups(sctx)
	if err != nil {
		return models.Group{}, err
	}

	for _, group := range groups {
		if !strings.EqualFold(group.InviteCode, strings.TrimSpace(code)) {
			continue
		}
		if !group.AddMember(userID) {
			return group, nil
		}
		if err := r.store.SaveGroup(sctx, group); err != nil {
			return models.Group{}, err
		}
		if r.notifier != nil {
			r.notifier.BroadcastAll(models.RoomEvent{Type: models.EventGroupUpdated, Group: &group})
		}
		return group, nil
	}
	return models.Group{}, ErrInvalidInviteCode
}

// Leave removes userID from the group. The group survives even with zero
// members; only an explicit owner delete removes it.
func (r *Registry) Leave(ctx context.Context, groupID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	group, err := r.getGroup(sctx, groupID)
	if err != nil {
		return err
	}
	if !group.HasMember(userID) {
		return nil
	}
	group.RemoveMember(userID)
	if err := r.store.SaveGroup(sctx, group); err != nil {
		return err
	}
	if r.notifier != nil {
		r.notifier.BroadcastAll(models.RoomEvent{Type: models.EventGroupUpdated, Group: &group})
	}
	return nil
}

// Delete removes the group and its message history. Only the creator may
// delete; the broker room is evicted so the invite code and history are gone
// for good.
func (r *Registry) Delete(ctx context.Context, groupID, requesterID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	group, err := r.getGroup(sctx, groupID)
	if err != nil {
		return err
	}
	if group.CreatedBy != requesterID {
		return ErrForbidden
	}
	if err := r.store.DeleteGroup(sctx, groupID); err != nil {
		return err
	}
	if r.notifier != nil {
		r.notifier.EvictRoom(groupID)
	}
	return nil
}

// ListGroups returns every known group for bootstrapping a client's
// membership view.
func (r *Registry) ListGroups(ctx context.Context) (map[string]models.Group, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	return r.store.GetGroups(sctx)
}

// GetGroup fetches a single group.
func (r *Registry) GetGroup(ctx context.Context, groupID string) (models.Group, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()

	return r.getGroup(sctx, groupID)
}

// IsMember checks membership; the broker uses this to authorize room
// actions.
func (r *Registry) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	group, err := r.GetGroup(ctx, groupID)
	if errors.Is(err, store.ErrGroupNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return group.HasMember(userID), nil
}

func (r *Registry) getGroup(ctx context.Context, groupID string) (models.Group, error) {
	groups, err := r.store.GetGroups(ctx)
	if err != nil {
		return models.Group{}, err
	}
	group, ok := groups[groupID]
	if !ok {
		return models.Group{}, store.ErrGroupNotFound
	}
	return group, nil
}
