package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/uxurimx/uxuri-sub001/internal/apperr"
)

type Kind string

const (
	KindAssigned   Kind = "assigned"
	KindCompleted  Kind = "completed"
	KindNewMessage Kind = "message"
)

// Event is a closed set: only the types in this file implement it, and
// the dispatcher accepts them as values, never pointers.
type Event interface {
	Kind() Kind
	Validate() error
	// push renders the device-facing notification.
	push() pushPayload
	sealed()
}

// Assigned tells a user a task was assigned to them.
type Assigned struct {
	TaskTitle string `json:"task_title"`
	Actor     string `json:"actor"`
	URL       string `json:"url,omitempty"`
}

// Completed tells a task's owner that someone completed it.
type Completed struct {
	TaskTitle string `json:"task_title"`
	Actor     string `json:"actor"`
	URL       string `json:"url,omitempty"`
}

// NewMessage tells a user someone wrote to them.
type NewMessage struct {
	ChannelID string `json:"channel_id"`
	Sender    string `json:"sender"`
	Preview   string `json:"preview"`
	URL       string `json:"url,omitempty"`
}

func (Assigned) Kind() Kind   { return KindAssigned }
func (Completed) Kind() Kind  { return KindCompleted }
func (NewMessage) Kind() Kind { return KindNewMessage }

func (Assigned) sealed()   {}
func (Completed) sealed()  {}
func (NewMessage) sealed() {}

func (e Assigned) Validate() error {
	return requireFields(KindAssigned, map[string]string{"task_title": e.TaskTitle, "actor": e.Actor})
}

func (e Completed) Validate() error {
	return requireFields(KindCompleted, map[string]string{"task_title": e.TaskTitle, "actor": e.Actor})
}

func (e NewMessage) Validate() error {
	return requireFields(KindNewMessage, map[string]string{"channel_id": e.ChannelID, "sender": e.Sender})
}

// pushPayload is what the service worker receives.
type pushPayload struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

func (e Assigned) push() pushPayload {
	return pushPayload{Kind: KindAssigned, Title: "New task assigned", Body: e.Actor + " assigned you \"" + e.TaskTitle + "\"", URL: e.URL}
}

func (e Completed) push() pushPayload {
	return pushPayload{Kind: KindCompleted, Title: "Task completed", Body: e.Actor + " completed \"" + e.TaskTitle + "\"", URL: e.URL}
}

const previewLimit = 120

func (e NewMessage) push() pushPayload {
	preview := e.Preview
	if r := []rune(preview); len(r) > previewLimit {
		preview = string(r[:previewLimit-1]) + "…"
	}
	return pushPayload{Kind: KindNewMessage, Title: e.Sender, Body: preview, URL: e.URL}
}

// DecodeEvent parses {"kind": ..., "payload": {...}} into a concrete
// Event. Unknown kinds and unknown payload fields are rejected.
func DecodeEvent(data []byte) (Event, error) {
	var wire struct {
		Kind    Kind            `json:"kind"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, apperr.Wrap(apperr.KindValidationFailed, "malformed event", err)
	}

	var ev Event
	switch wire.Kind {
	case KindAssigned:
		var e Assigned
		if err := strictUnmarshal(wire.Payload, &e); err != nil {
			return nil, err
		}
		ev = e
	case KindCompleted:
		var e Completed
		if err := strictUnmarshal(wire.Payload, &e); err != nil {
			return nil, err
		}
		ev = e
	case KindNewMessage:
		var e NewMessage
		if err := strictUnmarshal(wire.Payload, &e); err != nil {
			return nil, err
		}
		ev = e
	default:
		return nil, apperr.Validation(fmt.Sprintf("unknown event kind %q", wire.Kind))
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apperr.Validation("event payload is required")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrap(apperr.KindValidationFailed, "malformed event payload", err)
	}
	return nil
}

func requireFields(kind Kind, fields map[string]string) error {
	var missing []string
	for name, value := range fields {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return apperr.Validation(fmt.Sprintf("%s event missing %s", kind, strings.Join(missing, ", ")))
}
