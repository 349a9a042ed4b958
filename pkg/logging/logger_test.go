package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	old := log.Logger
	oldLevel := zerolog.GlobalLevel()
	buf := &bytes.Buffer{}
	Setup(Config{Level: "debug", Output: buf})
	t.Cleanup(func() {
		log.Logger = old
		zerolog.SetGlobalLevel(oldLevel)
	})
	return buf
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &entry))
	return entry
}

func TestFromContext(t *testing.T) {
	buf := captureLogs(t)

	ctx := WithActor(WithRequestID(context.Background(), "req-1"), "0xabc")
	logger := FromContext(ctx)
	logger.Info().Msg("hello")

	entry := lastEntry(t, buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "0xabc", entry["actor"])
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}

func TestUnaryServerInterceptor(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/swapbook.v1.OrderBookService/AddOrder"}

	t.Run("mints request id", func(t *testing.T) {
		buf := captureLogs(t)
		var seen string
		_, err := UnaryServerInterceptor()(context.Background(), nil, info,
			func(ctx context.Context, req interface{}) (interface{}, error) {
				seen = RequestID(ctx)
				return "ok", nil
			})
		require.NoError(t, err)
		assert.Len(t, seen, 36)

		entry := lastEntry(t, buf)
		assert.Equal(t, "info", entry["level"])
		assert.Equal(t, "OK", entry["grpc.code"])
	})

	t.Run("keeps caller request id and actor", func(t *testing.T) {
		buf := captureLogs(t)
		ctx := metadata.NewIncomingContext(context.Background(),
			metadata.Pairs(RequestIDHeader, "abc", ActorHeader, "0x01"))
		_, err := UnaryServerInterceptor()(ctx, nil, info,
			func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, status.Error(codes.NotFound, "missing")
			})
		assert.Equal(t, codes.NotFound, status.Code(err))

		entry := lastEntry(t, buf)
		assert.Equal(t, "warn", entry["level"])
		assert.Equal(t, "abc", entry["request_id"])
		assert.Equal(t, "0x01", entry["actor"])
	})

	t.Run("internal errors log at error level", func(t *testing.T) {
		buf := captureLogs(t)
		_, err := UnaryServerInterceptor()(context.Background(), nil, info,
			func(ctx context.Context, req interface{}) (interface{}, error) {
				return nil, errors.New("boom")
			})
		assert.Error(t, err)
		assert.Equal(t, "error", lastEntry(t, buf)["level"])
	})
}
