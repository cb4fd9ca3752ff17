package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Abdulah-eng/newhitsapp-sub002/internal/domain"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const roleResolvedChannel = "role:resolved"

type roleResolvedEvent struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// RoleEventBus publishes "role resolved" signals over Redis pub/sub and fans
// them out to in-process watchers. One subscription serves every watcher on
// the instance.
type RoleEventBus struct {
	rdb   *goredis.Client
	cache *RoleCacheRepo

	mu       sync.Mutex
	watchers map[uuid.UUID]map[chan domain.Role]struct{}
}

var _ domain.RoleEvents = (*RoleEventBus)(nil)

// NewRoleEventBus creates the bus. cache may be nil; when set, its in-memory
// layer is dropped for every announced user.
func NewRoleEventBus(rdb *goredis.Client, cache *RoleCacheRepo) *RoleEventBus {
	return &RoleEventBus{
		rdb:      rdb,
		cache:    cache,
		watchers: make(map[uuid.UUID]map[chan domain.Role]struct{}),
	}
}

func (b *RoleEventBus) PublishRoleResolved(ctx context.Context, userID uuid.UUID, role domain.Role) error {
	payload, err := json.Marshal(roleResolvedEvent{UserID: userID, Role: role})
	if err != nil {
		return fmt.Errorf("failed to encode role event: %w", err)
	}
	if err := b.rdb.Publish(ctx, roleResolvedChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish role event: %w", err)
	}
	return nil
}

// Watch registers a watcher for userID. Only the latest role is buffered.
func (b *RoleEventBus) Watch(userID uuid.UUID) (<-chan domain.Role, func()) {
	ch := make(chan domain.Role, 1)

	b.mu.Lock()
	set, ok := b.watchers[userID]
	if !ok {
		set = make(map[chan domain.Role]struct{})
		b.watchers[userID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.watchers[userID], ch)
			if len(b.watchers[userID]) == 0 {
				delete(b.watchers, userID)
			}
		})
	}
	return ch, cancel
}

// Start subscribes and dispatches until ctx is cancelled.
func (b *RoleEventBus) Start(ctx context.Context) {
	pubsub := b.rdb.Subscribe(ctx, roleResolvedChannel)
	defer func() { _ = pubsub.Close() }()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok || msg == nil {
				return
			}
			b.handle(msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (b *RoleEventBus) handle(payload string) {
	var ev roleResolvedEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil || ev.UserID == uuid.Nil {
		slog.Warn("Ignoring malformed role event", "payload", payload)
		return
	}

	if b.cache != nil {
		b.cache.forget(ev.UserID)
	}
	b.dispatch(ev.UserID, ev.Role)
	slog.Debug("Role resolved event dispatched", "user_id", ev.UserID.String(), "role", ev.Role.String())
}

func (b *RoleEventBus) dispatch(userID uuid.UUID, role domain.Role) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.watchers[userID] {
		// Replace any unread value so the watcher sees the latest role.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- role:
		default:
		}
	}
}

func (b *RoleEventBus) watcherCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, set := range b.watchers {
		n += len(set)
	}
	return n
}
