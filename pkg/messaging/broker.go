package messaging

import (
	"context"
	"errors"
)

var ErrClosed = errors.New("broker is closed")

// Broker moves JSON-encoded messages between processes. Publish marshals
// message; subscribers receive the raw bytes.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Handler processes one message received from a channel.
type Handler func(ctx context.Context, payload []byte) error
