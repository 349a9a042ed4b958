// Package testutil holds helpers shared by tests that need external
// services or well-formed actors.
package testutil

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/erain9/swapbook/pkg/core"
	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

// Default addresses of the test dependencies
const (
	DefaultRedisAddr  = "localhost:6379"
	DefaultKafkaAddr  = "localhost:9092"
	DefaultKafkaTopic = "swapbook-test"
)

// RedisAddr returns the Redis address for dependency-backed tests
func RedisAddr() string {
	if addr := os.Getenv("SWAPBOOK_TEST_REDIS_ADDR"); addr != "" {
		return addr
	}
	return DefaultRedisAddr
}

// KafkaAddr returns the Kafka broker address for dependency-backed tests
func KafkaAddr() string {
	if addr := os.Getenv("SWAPBOOK_TEST_KAFKA_ADDR"); addr != "" {
		return addr
	}
	return DefaultKafkaAddr
}

// SkipIfRedisUnavailable skips the test if Redis is unavailable on the specified address
func SkipIfRedisUnavailable(t testing.TB, redisAddr string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer client.Close()

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skipf("Skipping test: Redis not available at %s - %v", redisAddr, err)
	}
}

// SkipIfKafkaUnavailable skips the test if Kafka is unavailable on the specified address
func SkipIfKafkaUnavailable(t testing.TB, kafkaAddr string) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", kafkaAddr, 2*time.Second)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available at %s - %v", kafkaAddr, err)
		return
	}
	_ = conn.Close()

	// a broker that accepts TCP but cannot serve fetches is treated as absent
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{kafkaAddr},
		Topic:       DefaultKafkaTopic,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})
	defer reader.Close()

	_, err = reader.FetchMessage(ctx)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && err.Error() != "EOF" {
		t.Skipf("Skipping test: Kafka at %s is not responding correctly - %v", kafkaAddr, err)
	}
}

// SkipIfDependenciesUnavailable skips the test if either Redis or Kafka is unavailable
func SkipIfDependenciesUnavailable(t testing.TB, redisAddr, kafkaAddr string) {
	t.Helper()
	SkipIfRedisUnavailable(t, redisAddr)
	SkipIfKafkaUnavailable(t, kafkaAddr)
}

// NewActor returns a fresh well-formed actor id
func NewActor(t testing.TB) core.ActorID {
	t.Helper()
	actor, err := core.GenerateActorID()
	require.NoError(t, err)
	return actor
}
