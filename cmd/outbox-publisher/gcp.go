package main

import (
	"context"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

const jitterWindow = 250 * time.Millisecond

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherFactory func(topic string) publisher

// gcpPublisherFactory caches one Pub/Sub publisher per topic.
func gcpPublisherFactory(client pubSubClient) publisherFactory {
	cache := map[string]publisher{}
	return func(topic string) publisher {
		if p, ok := cache[topic]; ok {
			return p
		}
		raw := client.Publisher(topic)
		if raw == nil {
			return nil
		}
		p := gcpPublisher{raw}
		cache[topic] = p
		return p
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + rand.N(jitterWindow)
}
