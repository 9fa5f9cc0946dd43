// Package bus implements the completion event bus: two topics broadcasting
// finished reviews to notification, reporting, and persistence consumers.
// Fan-out is synchronous, in registration order, inside the publishing
// worker's goroutine. The subscriber set is fixed at construction.
package bus

import (
	"log"

	"reviewhooks/internal"
	"reviewhooks/pkg/entity"
)

// Topic names.
const (
	TopicMergeRequestReviewed = "merge_request_reviewed"
	TopicPushReviewed         = "push_reviewed"
)

// MergeRequestSubscriber consumes a finished merge request review.
type MergeRequestSubscriber struct {
	Name string
	Fn   func(*entity.MergeRequestReview) error
}

// PushSubscriber consumes a finished push review.
type PushSubscriber struct {
	Name string
	Fn   func(*entity.PushReview) error
}

// Config fixes the subscriber lists for both topics.
type Config struct {
	OnMergeRequestReviewed []MergeRequestSubscriber
	OnPushReviewed         []PushSubscriber
	Logger                 *log.Logger
}

// Bus is safe for concurrent publication from multiple worker tasks: the
// subscriber lists never change after New.
type Bus struct {
	mrSubs   []MergeRequestSubscriber
	pushSubs []PushSubscriber
	logger   *log.Logger
}

// New builds a bus with a fixed subscriber set.
func New(cfg Config) *Bus {
	logger := cfg.Logger
	if logger == nil {
		logger = internal.NewLogger("bus")
	}
	return &Bus{
		mrSubs:   append([]MergeRequestSubscriber(nil), cfg.OnMergeRequestReviewed...),
		pushSubs: append([]PushSubscriber(nil), cfg.OnPushReviewed...),
		logger:   logger,
	}
}

// PublishMergeRequestReviewed fans the entity out to every subscriber on the
// merge_request_reviewed topic. A failing subscriber is logged and the next
// one still runs; nothing propagates back to the publisher.
func (b *Bus) PublishMergeRequestReviewed(e *entity.MergeRequestReview) {
	for _, sub := range b.mrSubs {
		b.invoke(TopicMergeRequestReviewed, sub.Name, func() error { return sub.Fn(e) })
	}
}

// PublishPushReviewed fans the entity out to every subscriber on the
// push_reviewed topic.
func (b *Bus) PublishPushReviewed(e *entity.PushReview) {
	for _, sub := range b.pushSubs {
		b.invoke(TopicPushReviewed, sub.Name, func() error { return sub.Fn(e) })
	}
}

func (b *Bus) invoke(topic, name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("subscriber %s panicked on %s: %v", name, topic, r)
		}
	}()
	if err := fn(); err != nil {
		b.logger.Printf("subscriber %s failed on %s: %v", name, topic, err)
	}
}
