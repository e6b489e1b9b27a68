// Package push delivers web push notifications to registered devices.
package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/uxurimx/uxuri-sub001/internal/models"
)

// Result classifies one delivery attempt.
type Result int

const (
	ResultDelivered Result = iota
	// ResultGone means the push service reported the registration as
	// permanently invalid; it should be deleted.
	ResultGone
	// ResultFailed is any other failure. The registration is kept.
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultDelivered:
		return "delivered"
	case ResultGone:
		return "gone"
	default:
		return "failed"
	}
}

// Sender delivers one payload to one device.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (Result, error)
}

type WebPushOptions struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             time.Duration
	HTTPClient      webpush.HTTPClient
}

// WebPushSender encrypts and sends payloads per RFC 8291 using VAPID
// authentication.
type WebPushSender struct {
	opts WebPushOptions
}

func NewWebPushSender(opts WebPushOptions) *WebPushSender {
	return &WebPushSender{opts: opts}
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (Result, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload,
		&webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				Auth:   sub.Auth,
				P256dh: sub.P256dh,
			},
		},
		&webpush.Options{
			HTTPClient:      s.opts.HTTPClient,
			Subscriber:      s.opts.Subscriber,
			VAPIDPublicKey:  s.opts.VAPIDPublicKey,
			VAPIDPrivateKey: s.opts.VAPIDPrivateKey,
			TTL:             int(s.opts.TTL.Seconds()),
			Urgency:         webpush.UrgencyNormal,
		},
	)
	if err != nil {
		return ResultFailed, fmt.Errorf("send web push: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return Classify(resp.StatusCode)
}

// Classify maps a push service status code to a Result. 404 and 410 both
// mean the subscription no longer exists.
func Classify(status int) (Result, error) {
	switch {
	case status >= 200 && status < 300:
		return ResultDelivered, nil
	case status == http.StatusGone || status == http.StatusNotFound:
		return ResultGone, fmt.Errorf("push endpoint gone: status %d", status)
	default:
		return ResultFailed, fmt.Errorf("push service returned status %d", status)
	}
}
