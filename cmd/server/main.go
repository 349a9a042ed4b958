package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erain9/swapbook/config"
	"github.com/erain9/swapbook/pkg/backend/redis"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/erain9/swapbook/pkg/db/queue"
	"github.com/erain9/swapbook/pkg/logging"
	"github.com/erain9/swapbook/pkg/messaging"
	"github.com/erain9/swapbook/pkg/messaging/kafka"
	"github.com/erain9/swapbook/pkg/otel"
	"github.com/erain9/swapbook/pkg/server"
	"github.com/rs/zerolog/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const serviceVersion = "0.1.0"

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(args []string) error {
	cfg, err := config.LoadConfig(args)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
		Output: os.Stdout,
	})

	cleanup, err := otel.Init(otel.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		ServiceVersion:   serviceVersion,
		Endpoint:         cfg.Telemetry.Endpoint,
		CollectorEnabled: cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Continuing without telemetry")
	}
	defer cleanup()
	if cfg.Telemetry.Enabled {
		if err := otel.StartRuntimeMetrics(); err != nil {
			log.Warn().Err(err).Msg("Failed to start runtime metrics")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if info, err := a.manager.Info(ctx); err == nil {
		server.LogOrderBookSummary(log.Logger, info)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.GRPCAddr, err)
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.Server.GRPCAddr).Msg("Starting gRPC server")
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		log.Info().Str("addr", a.httpServer.Addr).Msg("Starting HTTP server")
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received signal, shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("Server stopped unexpectedly")
		a.shutdown()
		return err
	}

	a.shutdown()
	log.Info().Msg("Servers shutdown complete")
	return nil
}

// app wires the book, its transports and its notification senders
type app struct {
	manager    *server.OrderBookManager
	dispatcher *server.Dispatcher
	hub        *server.Hub
	grpcServer *grpc.Server
	httpServer *http.Server
	zapLogger  *zap.Logger
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage logger: %w", err)
	}

	manager, err := server.NewOrderBookManager(ctx, cfg.Book.Name, server.BackendOptions{
		Type: cfg.Book.Backend,
		Redis: redis.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		RedisPrefix: cfg.Redis.Prefix,
		PebblePath:  cfg.Pebble.Path,
		Logger:      zapLogger,
	}, bookOptions(cfg)...)
	if err != nil {
		_ = zapLogger.Sync()
		return nil, fmt.Errorf("failed to create order book: %w", err)
	}

	hub := server.NewHub()
	sender, err := newSender(cfg, hub)
	if err != nil {
		_ = manager.Close()
		return nil, err
	}

	dispatcher := server.NewDispatcher(manager.Book(), sender)
	limiter := server.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	return &app{
		manager:    manager,
		dispatcher: dispatcher,
		hub:        hub,
		grpcServer: server.NewGRPCServer(server.NewGRPCOrderBookService(dispatcher), limiter),
		httpServer: &http.Server{
			Addr:              cfg.Server.HTTPAddr,
			Handler:           server.NewHTTPServer(dispatcher, manager, hub, limiter, cfg.Server.CORSOrigins).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
		zapLogger: zapLogger,
	}, nil
}

func bookOptions(cfg *config.Config) []core.Option {
	return []core.Option{
		core.WithOrderTTL(cfg.Book.OrderTTL),
		core.WithEnforceOwnership(cfg.Matching.EnforceOwnership),
		core.WithExcludeExpired(cfg.Matching.ExcludeExpired),
	}
}

// newSender fans notifications out to the websocket hub and, when enabled,
// to Kafka through the configured driver
func newSender(cfg *config.Config, hub *server.Hub) (*messaging.MultiSender, error) {
	if !cfg.Kafka.Enabled {
		return messaging.NewMultiSender(hub), nil
	}

	switch cfg.Kafka.Driver {
	case config.DriverSarama:
		sender, err := queue.NewQueueMessageSender(queue.Config{
			Brokers: []string{cfg.Kafka.BrokerAddr},
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			return nil, err
		}
		return messaging.NewMultiSender(hub, sender), nil
	default:
		sender, err := kafka.NewKafkaMessageSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
		if err != nil {
			return nil, err
		}
		return messaging.NewMultiSender(hub, sender), nil
	}
}

func newZapLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Server.LogFormat == "pretty" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// shutdown stops accepting requests on both transports
func (a *app) shutdown() {
	a.grpcServer.GracefulStop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
}

// Close releases the senders and the store
func (a *app) Close() {
	if err := a.dispatcher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close notification senders")
	}
	if err := a.manager.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close order book")
	}
	_ = a.zapLogger.Sync()
}
