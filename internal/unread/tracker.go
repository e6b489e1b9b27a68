// Package unread tracks which channels a client session has not viewed.
//
// Mutations are idempotent: marking a channel that is already unread, or
// clearing one that is not, changes nothing and notifies no one. Listeners
// hear about every real change exactly once.
package unread

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"
)

// Listener receives the full set after each change.
type Listener func(unread []string)

type Tracker struct {
	storage Storage
	logger  *zap.Logger

	mu        sync.Mutex
	loaded    bool
	set       map[string]struct{}
	listeners map[int]Listener
	nextID    int
}

func NewTracker(storage Storage, logger *zap.Logger) *Tracker {
	return &Tracker{
		storage:   storage,
		logger:    logger,
		listeners: make(map[int]Listener),
	}
}

// MarkUnread adds channelID. Reports whether the set changed.
func (t *Tracker) MarkUnread(ctx context.Context, channelID string) (bool, error) {
	return t.mutate(ctx, channelID, true)
}

// ClearUnread removes channelID. Reports whether the set changed.
func (t *Tracker) ClearUnread(ctx context.Context, channelID string) (bool, error) {
	return t.mutate(ctx, channelID, false)
}

// Unread returns the current set, sorted.
func (t *Tracker) Unread(ctx context.Context) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.loadLocked(ctx); err != nil {
		return nil, err
	}
	return t.snapshotLocked(), nil
}

// Subscribe registers fn and returns the matching unsubscribe. Calling the
// returned func more than once is harmless.
func (t *Tracker) Subscribe(fn Listener) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.listeners, id)
	}
}

// Reset empties the set, persists it and notifies if it was non-empty.
func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	if err := t.loadLocked(ctx); err != nil {
		t.mu.Unlock()
		return err
	}
	if len(t.set) == 0 {
		t.mu.Unlock()
		return nil
	}
	previous := t.set
	t.set = make(map[string]struct{})
	if err := t.persistLocked(ctx); err != nil {
		t.set = previous
		t.mu.Unlock()
		return err
	}
	snapshot, listeners := t.snapshotLocked(), t.listenersLocked()
	t.mu.Unlock()

	notify(listeners, snapshot)
	return nil
}

func (t *Tracker) mutate(ctx context.Context, channelID string, unread bool) (bool, error) {
	if channelID == "" {
		return false, fmt.Errorf("channel id is required")
	}

	t.mu.Lock()
	if err := t.loadLocked(ctx); err != nil {
		t.mu.Unlock()
		return false, err
	}

	_, present := t.set[channelID]
	if present == unread {
		t.mu.Unlock()
		return false, nil
	}

	if unread {
		t.set[channelID] = struct{}{}
	} else {
		delete(t.set, channelID)
	}
	if err := t.persistLocked(ctx); err != nil {
		// Roll back so memory never diverges from what was stored.
		if unread {
			delete(t.set, channelID)
		} else {
			t.set[channelID] = struct{}{}
		}
		t.mu.Unlock()
		return false, err
	}
	snapshot, listeners := t.snapshotLocked(), t.listenersLocked()
	t.mu.Unlock()

	notify(listeners, snapshot)
	return true, nil
}

// loadLocked reads persisted state on first use. A missing or corrupt
// value starts the session empty.
func (t *Tracker) loadLocked(ctx context.Context) error {
	if t.loaded {
		return nil
	}
	data, err := t.storage.Load(ctx)
	if err != nil {
		return err
	}

	t.set = make(map[string]struct{})
	if len(data) > 0 {
		var ids []string
		if err := json.Unmarshal(data, &ids); err != nil {
			t.logger.Warn("discarding corrupt unread state", zap.Error(err))
		} else {
			for _, id := range ids {
				if id != "" {
					t.set[id] = struct{}{}
				}
			}
		}
	}
	t.loaded = true
	return nil
}

func (t *Tracker) persistLocked(ctx context.Context) error {
	data, err := json.Marshal(t.snapshotLocked())
	if err != nil {
		return fmt.Errorf("marshal unread markers: %w", err)
	}
	return t.storage.Save(ctx, data)
}

func (t *Tracker) snapshotLocked() []string {
	out := make([]string, 0, len(t.set))
	for id := range t.set {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

func (t *Tracker) listenersLocked() []Listener {
	out := make([]Listener, 0, len(t.listeners))
	for _, fn := range t.listeners {
		out = append(out, fn)
	}
	return out
}

// notify runs outside the lock so a listener may call back into the
// tracker.
func notify(listeners []Listener, snapshot []string) {
	for _, fn := range listeners {
		fn(slices.Clone(snapshot))
	}
}
