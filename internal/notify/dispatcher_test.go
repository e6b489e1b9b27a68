package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/push"
	"github.com/uxurimx/uxuri-sub001/internal/repository/memory"
	"go.uber.org/zap"
)

type published struct {
	channel string
	event   string
	payload any
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []published
	err   error
}

func (p *fakePublisher) Publish(_ context.Context, channel, event string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, published{channel: channel, event: event, payload: payload})
	return p.err
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// fakeSender answers by endpoint suffix: "/gone" -> gone, "/fail" -> failed,
// anything else delivered. When arrived is set, each Send announces itself
// and holds until release is closed.
type fakeSender struct {
	mu      sync.Mutex
	sent    []string
	arrived chan struct{}
	release chan struct{}
}

func (s *fakeSender) Send(ctx context.Context, sub models.PushSubscription, _ []byte) (push.Result, error) {
	s.mu.Lock()
	s.sent = append(s.sent, sub.Endpoint)
	s.mu.Unlock()

	if s.arrived != nil {
		s.arrived <- struct{}{}
		select {
		case <-ctx.Done():
			return push.ResultFailed, ctx.Err()
		case <-s.release:
		}
	}

	switch {
	case strings.HasSuffix(sub.Endpoint, "/gone"):
		return push.ResultGone, errors.New("410")
	case strings.HasSuffix(sub.Endpoint, "/fail"):
		return push.ResultFailed, errors.New("503")
	default:
		return push.ResultDelivered, nil
	}
}

func register(t *testing.T, store *memory.Store, userID string, endpoints ...string) {
	t.Helper()
	for _, ep := range endpoints {
		_, err := store.PushSubscriptions().Upsert(context.Background(), &models.PushSubscription{
			UserID: userID, Endpoint: ep, Auth: "auth", P256dh: "key",
		})
		require.NoError(t, err)
	}
}

func endpoints(t *testing.T, store *memory.Store, userID string) []string {
	t.Helper()
	subs, err := store.PushSubscriptions().ListByUser(context.Background(), userID)
	require.NoError(t, err)
	out := make([]string, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.Endpoint)
	}
	return out
}

var assigned = Assigned{TaskTitle: "Ship release", Actor: "Ana", URL: "/tasks/1"}

func TestDispatchNoDevicesNoListeners(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	sender := &fakeSender{}
	d := NewDispatcher(pub, store.PushSubscriptions(), sender, time.Second, zap.NewNop())

	report, err := d.Dispatch(context.Background(), "user_b", assigned)
	require.NoError(t, err)
	assert.True(t, report.Published)
	assert.Zero(t, report.Devices)
	assert.Empty(t, sender.sent)

	require.Len(t, pub.calls, 1)
	assert.Equal(t, "private-user-user_b", pub.calls[0].channel)
	assert.Equal(t, "assigned", pub.calls[0].event)
}

func TestDispatchPrunesOnlyGoneDevice(t *testing.T) {
	store := memory.New()
	register(t, store, "user_b", "https://push/1", "https://push/2/gone", "https://push/3", "https://push/4/fail")
	register(t, store, "user_c", "https://push/other/gone")

	d := NewDispatcher(&fakePublisher{}, store.PushSubscriptions(), &fakeSender{}, time.Second, zap.NewNop())

	report, err := d.Dispatch(context.Background(), "user_b", assigned)
	require.NoError(t, err)

	assert.Equal(t, Report{Published: true, Devices: 4, Delivered: 2, Pruned: 1, Failed: 1}, report)
	assert.ElementsMatch(t, []string{"https://push/1", "https://push/3", "https://push/4/fail"}, endpoints(t, store, "user_b"))
	assert.Equal(t, []string{"https://push/other/gone"}, endpoints(t, store, "user_c"))
}

func TestDispatchSendsConcurrently(t *testing.T) {
	store := memory.New()
	eps := []string{"https://push/a", "https://push/b/gone", "https://push/c/fail", "https://push/d"}
	register(t, store, "user_b", eps...)

	sender := &fakeSender{arrived: make(chan struct{}, len(eps)), release: make(chan struct{})}
	d := NewDispatcher(&fakePublisher{}, store.PushSubscriptions(), sender, 5*time.Second, zap.NewNop())

	done := make(chan Report, 1)
	go func() {
		report, err := d.Dispatch(context.Background(), "user_b", assigned)
		assert.NoError(t, err)
		done <- report
	}()

	// Every send must be in flight before any is allowed to return.
	for i := 0; i < len(eps); i++ {
		select {
		case <-sender.arrived:
		case <-time.After(2 * time.Second):
			close(sender.release)
			t.Fatalf("only %d of %d sends started concurrently", i, len(eps))
		}
	}
	close(sender.release)

	select {
	case report := <-done:
		assert.Equal(t, 2, report.Delivered)
		assert.Equal(t, 1, report.Pruned)
		assert.Equal(t, 1, report.Failed)
	case <-time.After(3 * time.Second):
		t.Fatal("dispatch did not settle")
	}
}

func TestDispatchPublishFailureIsNotFatal(t *testing.T) {
	store := memory.New()
	register(t, store, "user_b", "https://push/1")
	pub := &fakePublisher{err: errors.New("redis down")}

	report, err := NewDispatcher(pub, store.PushSubscriptions(), &fakeSender{}, time.Second, zap.NewNop()).
		Dispatch(context.Background(), "user_b", assigned)
	require.NoError(t, err)
	assert.False(t, report.Published)
	assert.Equal(t, 1, report.Delivered)
}

func TestDispatchWithoutSender(t *testing.T) {
	store := memory.New()
	register(t, store, "user_b", "https://push/1/gone")

	report, err := NewDispatcher(&fakePublisher{}, store.PushSubscriptions(), nil, time.Second, zap.NewNop()).
		Dispatch(context.Background(), "user_b", assigned)
	require.NoError(t, err)
	assert.Zero(t, report.Devices)
	assert.Len(t, endpoints(t, store, "user_b"), 1)
}

func TestDispatchRejectsMalformedEvent(t *testing.T) {
	store := memory.New()
	register(t, store, "user_b", "https://push/1")
	pub := &fakePublisher{}
	sender := &fakeSender{}
	d := NewDispatcher(pub, store.PushSubscriptions(), sender, time.Second, zap.NewNop())

	cases := map[string]struct {
		user string
		ev   Event
	}{
		"missing title": {"user_b", Assigned{Actor: "Ana"}},
		"missing actor": {"user_b", Completed{TaskTitle: "x"}},
		"missing chan":  {"user_b", NewMessage{Sender: "Ana"}},
		"nil event":     {"user_b", nil},
		"typed nil":     {"user_b", (*Assigned)(nil)},
		"pointer event": {"user_b", &NewMessage{ChannelID: "c1", Sender: "Ana"}},
		"no target":     {"", assigned},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tc.user, tc.ev)
			assert.True(t, apperr.Is(err, apperr.KindValidationFailed), "got %v", err)
			assert.Error(t, d.Go(context.Background(), tc.user, tc.ev))
		})
	}
	assert.Zero(t, pub.count())
	assert.Empty(t, sender.sent)
}

func TestGoRunsDetached(t *testing.T) {
	store := memory.New()
	register(t, store, "user_b", "https://push/1/gone")
	pub := &fakePublisher{}
	d := NewDispatcher(pub, store.PushSubscriptions(), &fakeSender{}, time.Second, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Go(ctx, "user_b", NewMessage{ChannelID: "c1", Sender: "Ana", Preview: "hi"}))
	cancel()
	d.Wait()

	assert.Equal(t, 1, pub.count())
	assert.Empty(t, endpoints(t, store, "user_b"))
}
