package unread

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recorder struct {
	events [][]string
}

func (r *recorder) listen(unread []string) {
	r.events = append(r.events, unread)
}

type failingStorage struct {
	MemoryStorage
	failSave bool
}

func (f *failingStorage) Save(ctx context.Context, data []byte) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.MemoryStorage.Save(ctx, data)
}

func TestTrackerIdempotentNotifications(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryStorage(), zap.NewNop())
	rec := &recorder{}
	unsubscribe := tracker.Subscribe(rec.listen)
	defer unsubscribe()

	changed, err := tracker.ClearUnread(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, rec.events, "clearing an absent channel must not notify")

	changed, err = tracker.MarkUnread(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, rec.events, 1)
	assert.Equal(t, []string{"c1"}, rec.events[0])

	changed, err = tracker.MarkUnread(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Len(t, rec.events, 1, "marking a present channel must not notify")

	changed, err = tracker.ClearUnread(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, rec.events, 2)
	assert.Empty(t, rec.events[1])
}

func TestTrackerMultipleListenersAndUnsubscribe(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryStorage(), zap.NewNop())
	a, b := &recorder{}, &recorder{}
	unsubA := tracker.Subscribe(a.listen)
	unsubB := tracker.Subscribe(b.listen)

	_, err := tracker.MarkUnread(ctx, "c1")
	require.NoError(t, err)
	unsubA()
	unsubA()
	_, err = tracker.MarkUnread(ctx, "c2")
	require.NoError(t, err)
	unsubB()

	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 2)
	assert.Equal(t, []string{"c1", "c2"}, b.events[1])
}

func TestTrackerPersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	first := NewTracker(storage, zap.NewNop())
	_, err := first.MarkUnread(ctx, "c2")
	require.NoError(t, err)
	_, err = first.MarkUnread(ctx, "c1")
	require.NoError(t, err)

	second := NewTracker(storage, zap.NewNop())
	unread, err := second.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, unread)
}

func TestTrackerCorruptStateResets(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(ctx, []byte(`{not json`)))

	tracker := NewTracker(storage, zap.NewNop())
	unread, err := tracker.Unread(ctx)
	require.NoError(t, err)
	assert.Empty(t, unread)

	changed, err := tracker.MarkUnread(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `["c1"]`, string(data))
}

func TestTrackerSaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	storage := &failingStorage{}
	tracker := NewTracker(storage, zap.NewNop())
	rec := &recorder{}
	tracker.Subscribe(rec.listen)

	storage.failSave = true
	_, err := tracker.MarkUnread(ctx, "c1")
	require.Error(t, err)

	unread, err := tracker.Unread(ctx)
	require.NoError(t, err)
	assert.Empty(t, unread)
	assert.Empty(t, rec.events)
}

func TestTrackerReset(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryStorage(), zap.NewNop())
	rec := &recorder{}
	tracker.Subscribe(rec.listen)

	require.NoError(t, tracker.Reset(ctx))
	assert.Empty(t, rec.events)

	_, err := tracker.MarkUnread(ctx, "c1")
	require.NoError(t, err)
	require.NoError(t, tracker.Reset(ctx))
	require.Len(t, rec.events, 2)
	assert.Empty(t, rec.events[1])
}

func TestRedisStorage(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	ctx := context.Background()

	storage := NewRedisStorage(client, "sess-1")
	data, err := storage.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)

	tracker := NewTracker(storage, zap.NewNop())
	_, err = tracker.MarkUnread(ctx, "c9")
	require.NoError(t, err)

	raw, err := s.Get("unread:sess-1")
	require.NoError(t, err)
	assert.JSONEq(t, `["c9"]`, raw)

	s.Set("unread:sess-2", "garbage")
	unread, err := NewTracker(NewRedisStorage(client, "sess-2"), zap.NewNop()).Unread(ctx)
	require.NoError(t, err)
	assert.Empty(t, unread)
}
