package logging

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const (
	// RequestIDKey is the key used to store request IDs in context
	RequestIDKey contextKey = "request_id"
	// ActorKey is the key used to store the calling actor in context
	ActorKey contextKey = "actor"

	// RequestIDHeader carries a caller supplied request id
	RequestIDHeader = "x-request-id"
	// ActorHeader carries the caller identity
	ActorHeader = "x-actor-id"
)

// Config defines logging configuration
type Config struct {
	// Level is the logging level (debug, info, warn, error)
	Level string
	// Pretty determines if logs should be formatted for human readability
	Pretty bool
	// Output is where logs are written (defaults to os.Stdout)
	Output io.Writer
}

// DefaultConfig returns the default logging configuration
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stdout,
	}
}

// Setup configures global logging based on the provided config
func Setup(cfg Config) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// WithRequestID stores a request id in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithActor stores the calling actor in ctx
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// FromContext extracts a logger carrying the request id and actor of ctx
func FromContext(ctx context.Context) zerolog.Logger {
	logCtx := log.With()
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		logCtx = logCtx.Str("request_id", requestID)
	}
	if actor, ok := ctx.Value(ActorKey).(string); ok {
		logCtx = logCtx.Str("actor", actor)
	}
	return logCtx.Logger()
}

// UnaryServerInterceptor returns a gRPC interceptor for request logging. A
// request id is minted when the caller does not send one.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		requestID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(RequestIDHeader); len(ids) > 0 {
				requestID = ids[0]
			}
			if actors := md.Get(ActorHeader); len(actors) > 0 {
				ctx = WithActor(ctx, actors[0])
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = WithRequestID(ctx, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(RequestIDHeader, requestID))

		logger := FromContext(ctx).With().
			Str("grpc.method", info.FullMethod).
			Logger()
		logger.Debug().Msg("Request received")

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		statusCode := status.Code(err)

		logEvent := logger.Info()
		switch statusCode {
		case codes.OK:
		case codes.Internal, codes.Unknown, codes.DataLoss:
			logEvent = logger.Error().Err(err)
		default:
			logEvent = logger.Warn().Err(err)
		}

		logEvent.Dur("duration", duration).
			Str("grpc.code", statusCode.String()).
			Msg("Request completed")

		return resp, err
	}
}
