// Package notify fans a user-facing event out to the user's live sockets
// and to every web push device they registered.
//
// Delivery is best effort. Only a malformed event is an error; publish and
// push failures are logged, and push registrations the provider reports as
// gone are deleted.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/uxurimx/uxuri-sub001/internal/apperr"
	"github.com/uxurimx/uxuri-sub001/internal/models"
	"github.com/uxurimx/uxuri-sub001/internal/push"
	"github.com/uxurimx/uxuri-sub001/internal/realtime"
	"github.com/uxurimx/uxuri-sub001/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultSendTimeout = 10 * time.Second

// Report summarizes one dispatch. It is informational; partial failure is
// not an error.
type Report struct {
	Published bool
	Devices   int
	Delivered int
	Pruned    int
	Failed    int
}

type delivery struct {
	sub    models.PushSubscription
	result push.Result
	err    error
}

type Dispatcher struct {
	publisher   realtime.Publisher
	subs        repository.PushSubscriptionRepository
	sender      push.Sender
	sendTimeout time.Duration
	logger      *zap.Logger

	inflight sync.WaitGroup
}

// NewDispatcher wires the dispatcher. sender may be nil, in which case
// only the socket path runs.
func NewDispatcher(
	publisher realtime.Publisher,
	subs repository.PushSubscriptionRepository,
	sender push.Sender,
	sendTimeout time.Duration,
	logger *zap.Logger,
) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &Dispatcher{
		publisher:   publisher,
		subs:        subs,
		sender:      sender,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Dispatch delivers ev to userID and returns once every push attempt has
// settled. The returned error is non-nil only for an invalid target or
// event, in which case nothing was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, ev Event) (Report, error) {
	if err := validate(userID, ev); err != nil {
		return Report{}, err
	}
	log := d.logger.With(zap.String("user_id", userID), zap.String("kind", string(ev.Kind())))

	var report Report
	report.Published = d.publish(ctx, userID, ev, log)

	if d.sender == nil {
		return report, nil
	}

	subs, err := d.subs.ListByUser(ctx, userID)
	if err != nil {
		log.Error("list push subscriptions", zap.Error(err))
		return report, nil
	}
	if len(subs) == 0 {
		return report, nil
	}
	report.Devices = len(subs)

	payload, err := json.Marshal(ev.push())
	if err != nil {
		log.Error("marshal push payload", zap.Error(err))
		return report, nil
	}

	for _, res := range d.sendAll(ctx, subs, payload) {
		switch res.result {
		case push.ResultDelivered:
			report.Delivered++
		case push.ResultGone:
			if err := d.subs.DeleteByEndpoint(context.WithoutCancel(ctx), res.sub.Endpoint); err != nil {
				log.Error("prune push subscription", zap.String("subscription_id", res.sub.ID.String()), zap.Error(err))
				report.Failed++
				continue
			}
			log.Info("pruned expired push subscription", zap.String("subscription_id", res.sub.ID.String()))
			report.Pruned++
		default:
			log.Warn("push delivery failed", zap.String("subscription_id", res.sub.ID.String()), zap.Error(res.err))
			report.Failed++
		}
	}

	if report.Delivered < report.Devices {
		log.Info("push fan-out incomplete",
			zap.String("code", string(apperr.KindDeliveryPartialFailure)),
			zap.Int("devices", report.Devices),
			zap.Int("delivered", report.Delivered),
			zap.Int("pruned", report.Pruned),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}

// Go validates ev synchronously and then dispatches it in the background,
// detached from ctx's cancellation, so the caller's response never waits
// on push providers.
func (d *Dispatcher) Go(ctx context.Context, userID string, ev Event) error {
	if err := validate(userID, ev); err != nil {
		return err
	}
	detached := context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		_, _ = d.Dispatch(detached, userID, ev)
	}()
	return nil
}

// Wait blocks until every dispatch started with Go has finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) publish(ctx context.Context, userID string, ev Event, log *zap.Logger) bool {
	body := struct {
		Kind    Kind  `json:"kind"`
		Payload Event `json:"payload"`
	}{Kind: ev.Kind(), Payload: ev}

	if err := d.publisher.Publish(ctx, realtime.UserChannel(userID), string(ev.Kind()), body); err != nil {
		log.Warn("socket publish failed", zap.Error(err))
		return false
	}
	return true
}

// sendAll issues every delivery concurrently and waits for all of them.
// Goroutines never return an error, so no attempt is cut short by a
// sibling's failure; each gets its own timeout detached from ctx.
func (d *Dispatcher) sendAll(ctx context.Context, subs []models.PushSubscription, payload []byte) []delivery {
	results := make([]delivery, len(subs))
	base := context.WithoutCancel(ctx)

	var g errgroup.Group
	for i, sub := range subs {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(base, d.sendTimeout)
			defer cancel()
			res, err := d.sender.Send(sendCtx, sub, payload)
			results[i] = delivery{sub: sub, result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func validate(userID string, ev Event) error {
	if userID == "" {
		return apperr.Validation("dispatch target is required")
	}
	switch ev.(type) {
	case nil:
		return apperr.Validation("event is required")
	case Assigned, Completed, NewMessage:
		return ev.Validate()
	default:
		// Pointer variants also satisfy Event through the value receivers;
		// only values are accepted so a typed nil can never reach Validate.
		return apperr.Validation(fmt.Sprintf("unsupported event type %T", ev))
	}
}
