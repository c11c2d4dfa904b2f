package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// publisher and publishResult narrow the pubsub client so tests can stand in
// for Google's types.
type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (serverID string, err error)
}

type publisherFactory func(topic string) publisher

type topicPublisher struct {
	inner *gcppubsub.Publisher
}

// wrapPublisher returns nil for a nil publisher so a missing topic shows up as
// a non-retryable failure instead of a panic.
func wrapPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return topicPublisher{inner: p}
}

func (p topicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return pendingResult{inner: p.inner.Publish(ctx, msg)}
}

type pendingResult struct {
	inner *gcppubsub.PublishResult
}

func (r pendingResult) Get(ctx context.Context) (string, error) {
	if r.inner == nil {
		return "", errors.New("pubsub returned no publish result")
	}
	return r.inner.Get(ctx)
}
