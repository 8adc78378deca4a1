package messaging

import (
	"context"
)

// Broker defines the interface for the read-only event feed transport. The
// core publishes device state changes, classified facts and dispatch
// outcomes; consumers (UI, alerting) subscribe. Publishing is best-effort
// and must never apply back-pressure to the pipeline.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}
