// Package queue publishes match notifications to Kafka through sarama and
// reads them back for auditing consumers.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	DefaultBroker = "localhost:9092"
	DefaultTopic  = "swapbook-matches"
	maxRetry      = 5
)

var (
	newSyncProducer = sarama.NewSyncProducer
	newConsumer     = sarama.NewConsumer
)

// Config describes where match messages go
type Config struct {
	Brokers []string
	Topic   string
}

func (c Config) withDefaults() Config {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{DefaultBroker}
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	return c
}

// QueueMessageSender implements messaging.MessageSender on a sarama sync
// producer. The producer is shared by all callers.
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender connects a sync producer to the configured brokers
func NewQueueMessageSender(cfg Config) (*QueueMessageSender, error) {
	cfg = cfg.withDefaults()

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Retry.Max = maxRetry

	producer, err := newSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueMessageSender{
		producer: producer,
		topic:    cfg.Topic,
	}, nil
}

// SendMatchMessage encodes msg as a protobuf Struct and publishes it keyed by
// recipient so one recipient's notifications stay ordered.
func (q *QueueMessageSender) SendMatchMessage(ctx context.Context, msg *messaging.MatchMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := EncodeMatchMessage(msg)
	if err != nil {
		return err
	}

	_, _, err = q.producer.SendMessage(&sarama.ProducerMessage{
		Topic:     q.topic,
		Key:       sarama.StringEncoder(msg.Recipient),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the underlying producer
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

var _ messaging.MessageSender = (*QueueMessageSender)(nil)

// EncodeMatchMessage serializes msg to protobuf bytes
func EncodeMatchMessage(msg *messaging.MatchMessage) ([]byte, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match message: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to marshal match message: %w", err)
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build match message struct: %w", err)
	}

	return proto.Marshal(s)
}

// DecodeMatchMessage is the inverse of EncodeMatchMessage
func DecodeMatchMessage(data []byte) (*messaging.MatchMessage, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match message: %w", err)
	}

	raw, err := json.Marshal(s.AsMap())
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal match message: %w", err)
	}

	var msg messaging.MatchMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal match message: %w", err)
	}
	return &msg, nil
}

// QueueMessageConsumer reads match messages from partition 0 of the topic
type QueueMessageConsumer struct {
	consumer  sarama.Consumer
	topic     string
	done      chan struct{}
	closeOnce sync.Once
}

// NewQueueMessageConsumer connects a consumer to the configured brokers
func NewQueueMessageConsumer(cfg Config) (*QueueMessageConsumer, error) {
	cfg = cfg.withDefaults()

	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true

	consumer, err := newConsumer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    cfg.Topic,
		done:     make(chan struct{}),
	}, nil
}

// ConsumeMatchMessages blocks, passing every decoded message to handler until
// Close is called. Undecodable messages and handler errors are logged and
// skipped.
func (q *QueueMessageConsumer) ConsumeMatchMessages(handler func(*messaging.MatchMessage) error) error {
	partitionConsumer, err := q.consumer.ConsumePartition(q.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	for {
		select {
		case msg, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			match, err := DecodeMatchMessage(msg.Value)
			if err != nil {
				log.Error().Err(err).Int64("offset", msg.Offset).Msg("Dropping undecodable match message")
				continue
			}
			if err := handler(match); err != nil {
				log.Error().Err(err).Str("recipient", match.Recipient).Msg("Match message handler failed")
			}
		case cerr, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			if cerr != nil {
				log.Warn().Err(cerr.Err).Str("topic", cerr.Topic).Msg("Kafka consumer error")
			}
		case <-q.done:
			return nil
		}
	}
}

// Close stops consumption and closes the consumer
func (q *QueueMessageConsumer) Close() error {
	var err error
	q.closeOnce.Do(func() {
		close(q.done)
		err = q.consumer.Close()
	})
	return err
}
