package events

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/abundantshare/share-backend/pkg/logger"
)

const defaultPublishTimeout = 15 * time.Second

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// Forwarder republishes bus events to a Pub/Sub topic so other services can
// observe changes. Publish failures are logged and never reach the writer.
type Forwarder struct {
	pub     publisher
	logg    *logger.Logger
	timeout time.Duration
}

// NewForwarder wraps a Pub/Sub publisher handle.
func NewForwarder(p *gcppubsub.Publisher, logg *logger.Logger) (*Forwarder, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Forwarder{pub: &gcpPublisher{Publisher: p}, logg: logg, timeout: defaultPublishTimeout}, nil
}

// Attach subscribes the forwarder to every event on the bus.
func (f *Forwarder) Attach(bus Bus) func() {
	return bus.Subscribe("", f.Forward)
}

// Forward publishes one event and waits for the server ack.
func (f *Forwarder) Forward(evt Event) {
	ctx := f.logg.WithFields(context.Background(), map[string]any{
		"event":     string(evt.Name),
		"action":    string(evt.Action),
		"entity_id": evt.EntityID,
	})

	payload, err := json.Marshal(evt)
	if err != nil {
		f.logg.Error(ctx, "events.forward_encode_failed", err)
		return
	}
	msg := &gcppubsub.Message{
		Data:        payload,
		OrderingKey: orderingKey(evt),
		Attributes: map[string]string{
			"event_name":  string(evt.Name),
			"action":      string(evt.Action),
			"entity_id":   evt.EntityID,
			"occurred_at": evt.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	result := f.pub.Publish(publishCtx, msg)
	if result == nil {
		f.logg.Warn(ctx, "events.forward_no_result")
		return
	}
	if _, err := result.Get(publishCtx); err != nil {
		f.logg.Error(ctx, "events.forward_failed", err)
		if msg.OrderingKey != "" {
			f.pub.ResumePublish(msg.OrderingKey)
		}
	}
}

// orderingKey keeps every change touching one listing in publish order.
func orderingKey(evt Event) string {
	if evt.ListingID != "" {
		return evt.ListingID
	}
	return evt.EntityID
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
