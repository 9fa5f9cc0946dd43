package forward

import (
	"context"
	"log"
	"time"

	"reviewhooks/internal"
	"reviewhooks/pkg/bus"
	"reviewhooks/pkg/entity"
)

// Forwarder bridges the completion bus to the broker publishers. It is
// wired into the bus as one subscriber per topic.
type Forwarder struct {
	publisher Publisher
	retry     internal.PublishRetryConfig
	timeout   time.Duration
	logger    *log.Logger
}

// NewForwarder builds the forwarder around an initialized publisher.
func NewForwarder(publisher Publisher, retry internal.PublishRetryConfig) *Forwarder {
	return &Forwarder{
		publisher: publisher,
		retry:     retry,
		timeout:   30 * time.Second,
		logger:    internal.NewLogger("forward"),
	}
}

// MergeRequestSubscriber returns the bus subscriber forwarding merge
// request reviews.
func (f *Forwarder) MergeRequestSubscriber() bus.MergeRequestSubscriber {
	return bus.MergeRequestSubscriber{
		Name: "forward",
		Fn: func(e *entity.MergeRequestReview) error {
			return f.forward(bus.TopicMergeRequestReviewed, e)
		},
	}
}

// PushSubscriber returns the bus subscriber forwarding push reviews.
func (f *Forwarder) PushSubscriber() bus.PushSubscriber {
	return bus.PushSubscriber{
		Name: "forward",
		Fn: func(e *entity.PushReview) error {
			return f.forward(bus.TopicPushReviewed, e)
		},
	}
}

func (f *Forwarder) forward(topic string, review interface{}) error {
	payload, err := marshalEnvelope(topic, review)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()
	err = retryPublish(ctx, f.retry, func() error {
		return f.publisher.Publish(ctx, topic, payload)
	})
	if err != nil {
		f.logger.Printf("forward to %s failed: %v", topic, err)
	}
	return err
}

// Close closes the underlying publisher.
func (f *Forwarder) Close() error {
	return f.publisher.Close()
}
