// Package webhook turns Klarna webhook pushes into events.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/klarna-connector/internal/apperror"
	"github.com/yourorg/klarna-connector/internal/format"
	"github.com/yourorg/klarna-connector/internal/klarna"
	"github.com/yourorg/klarna-connector/internal/monitor"
)

// AllEvents matches every event type.
const AllEvents = "*"

// EventTypes are the event types Klarna pushes.
var EventTypes = []string{
	"checkout_complete",
	"customer_token_created",
	"dispute_created",
	"dispute_resolved",
	"dispute_updated",
	"hpp_session_completed",
	"order_authorized",
	"order_cancelled",
	"order_captured",
	"order_expired",
	"order_refunded",
	"payout_completed",
}

// Event is an accepted webhook push.
type Event struct {
	EventType string            `json:"event_type"`
	EventID   string            `json:"event_id"`
	Timestamp string            `json:"timestamp"`
	Headers   map[string]string `json:"headers"`
	Body      map[string]any    `json:"body"`
	OrderID   any               `json:"order_id,omitempty"`
	Data      any               `json:"data,omitempty"`
}

// Sink receives accepted events.
type Sink interface {
	Publish(ctx context.Context, event *Event) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, *Event) error { return nil }

// Trigger matches and shapes inbound webhook pushes.
type Trigger struct {
	event   string
	filter  *Filter
	monitor *monitor.ContractMonitor
	sink    Sink
	notice  string
	now     func() time.Time
}

// Options configures a Trigger. Zero values select: all events, no filter
// rules, the built-in webhook schema and a NopSink.
type Options struct {
	Event   string
	Filter  *Filter
	Monitor *monitor.ContractMonitor
	Sink    Sink
	Notice  string
}

// NewTrigger validates the options and builds a Trigger.
func NewTrigger(opts Options) (*Trigger, error) {
	t := &Trigger{
		event:   opts.Event,
		filter:  opts.Filter,
		monitor: opts.Monitor,
		sink:    opts.Sink,
		notice:  opts.Notice,
		now:     time.Now,
	}
	if t.event == "" {
		t.event = AllEvents
	}
	if t.event != AllEvents && !knownEvent(t.event) {
		return nil, fmt.Errorf("unknown webhook event %q", t.event)
	}
	if t.monitor == nil {
		m, err := monitor.NewContractMonitorFromString(monitor.WebhookSchema)
		if err != nil {
			return nil, err
		}
		t.monitor = m
	}
	if t.sink == nil {
		t.sink = NopSink{}
	}
	return t, nil
}

func knownEvent(e string) bool {
	for _, known := range EventTypes {
		if known == e {
			return true
		}
	}
	return false
}

// Handle processes one push. It returns (nil, false, nil) when the event is
// not one the trigger listens for or a filter rule rejects it. An invalid
// body yields an *apperror.ValidationError.
func (t *Trigger) Handle(ctx context.Context, headers http.Header, body []byte) (*Event, bool, error) {
	if t.notice != "" {
		klarna.LogNoticeOnce(t.notice)
	}

	valid, violations, err := t.monitor.Validate(body)
	if err != nil {
		return nil, false, apperror.NewValidationError("Invalid webhook body: %v", err)
	}
	if !valid {
		return nil, false, apperror.NewValidationError("%s", monitor.FormatErrors(violations))
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, false, apperror.NewValidationError("Invalid webhook body: %v", err)
	}

	eventType, _ := payload["event_type"].(string)
	if t.event != AllEvents && eventType != t.event {
		return nil, false, nil
	}

	ok, err := t.filter.Allow(map[string]interface{}{
		"event_type": eventType,
		"event_id":   format.Stringify(payload["event_id"]),
		"order_id":   format.Stringify(payload["order_id"]),
		"has_data":   format.Truthy(payload["data"]),
	})
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	ev := &Event{
		EventType: eventType,
		EventID:   "",
		Timestamp: t.now().UTC().Format(time.RFC3339Nano),
		Headers:   flattenHeaders(headers),
		Body:      payload,
	}
	if v := payload["event_id"]; format.Truthy(v) {
		ev.EventID = format.Stringify(v)
	}
	if v := payload["timestamp"]; format.Truthy(v) {
		ev.Timestamp = format.Stringify(v)
	}
	if v := payload["order_id"]; format.Truthy(v) {
		ev.OrderID = v
	}
	if v := payload["data"]; format.Truthy(v) {
		ev.Data = v
	}

	if err := t.sink.Publish(ctx, ev); err != nil {
		return nil, false, fmt.Errorf("webhook: failed to publish event %s: %w", ev.EventID, err)
	}
	log.Printf("Webhook: accepted %s event %s", ev.EventType, ev.EventID)
	return ev, true, nil
}

// flattenHeaders lower-cases names and joins repeated values with ", ".
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = strings.Join(v, ", ")
	}
	return out
}
