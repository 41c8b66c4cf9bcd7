package messaging

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Consume subscribes to channel and feeds every message to handler until ctx
// is done or the subscription closes. Handler errors are logged and the
// message is dropped; redelivery is the publisher's concern.
func Consume(ctx context.Context, broker Broker, channel string, handler Handler, logger zerolog.Logger) error {
	msgs, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	logger.Info().Str("channel", channel).Msg("consuming messages")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				logger.Error().Err(err).Str("channel", channel).Msg("failed to handle message")
			}
		}
	}
}
