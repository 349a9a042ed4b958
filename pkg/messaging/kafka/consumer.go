package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// MatchHandler processes one received match message
type MatchHandler func(*messaging.MatchMessage) error

// LogMatchMessage returns a handler that logs every message it receives
func LogMatchMessage(logger zerolog.Logger) MatchHandler {
	return func(msg *messaging.MatchMessage) error {
		logger.Info().
			Str("recipient", msg.Recipient).
			Str("role", msg.Role).
			Str("match_type", msg.MatchType).
			Str("counterpart_id", msg.N1.ID).
			Str("order_id", msg.N2.ID).
			Msg("Received match message")
		return nil
	}
}

// SetupConsumer starts reading match messages in the background with a
// consumer group reader. Reading stops when ctx is cancelled; the returned
// reader should be closed by the caller.
func SetupConsumer(ctx context.Context, logger zerolog.Logger, brokerAddr, topic, groupID string, handler MatchHandler) *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	go func() {
		logger.Info().Str("topic", topic).Msg("Starting Kafka consumer")
		for {
			m, err := reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				logger.Error().Err(err).Msg("Kafka consumer error")
				return
			}

			var msg messaging.MatchMessage
			if err := json.Unmarshal(m.Value, &msg); err != nil {
				logger.Warn().Err(err).Int64("offset", m.Offset).Msg("Dropping undecodable match message")
				continue
			}
			if err := handler(&msg); err != nil {
				logger.Error().Err(err).Str("recipient", msg.Recipient).Msg("Match message handler failed")
			}
		}
	}()

	return reader
}
