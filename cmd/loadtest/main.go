package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// loadConfig describes one load run. Each worker owns two actors and keeps
// submitting reciprocal order pairs, each followed by a check.
type loadConfig struct {
	Workers        int
	PairsPerWorker int
	RequestsPerSec float64
}

// report aggregates request latencies per operation
type report struct {
	mu         sync.Mutex
	histograms map[string]*hdrhistogram.Histogram
	errors     atomic.Int64
	firstErr   atomic.Value
	duration   time.Duration
}

func newReport() *report {
	return &report{histograms: make(map[string]*hdrhistogram.Histogram)}
}

func (r *report) record(op string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.histograms[op]
	if !ok {
		// 1µs to 1min at three significant figures
		h = hdrhistogram.New(1, int64(time.Minute/time.Microsecond), 3)
		r.histograms[op] = h
	}
	_ = h.RecordValue(latency.Microseconds())
}

func (r *report) fail(err error) {
	if r.errors.Add(1) == 1 {
		r.firstErr.Store(err)
	}
}

// Count returns the number of successful requests recorded for op
func (r *report) Count(op string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[op]; ok {
		return h.TotalCount()
	}
	return 0
}

func (r *report) print(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(w, "Load test completed in %v\n", r.duration)
	fmt.Fprintf(w, "%-12s %10s %10s %10s %10s %10s\n", "operation", "count", "p50(us)", "p99(us)", "max(us)", "mean(us)")
	for _, op := range []string{"add", "check"} {
		h, ok := r.histograms[op]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-12s %10d %10d %10d %10d %10.1f\n", op, h.TotalCount(),
			h.ValueAtQuantile(50), h.ValueAtQuantile(99), h.Max(), h.Mean())
	}
	fmt.Fprintf(w, "Errors encountered: %d\n", r.errors.Load())
	if err, ok := r.firstErr.Load().(error); ok {
		fmt.Fprintf(w, "First error: %v\n", err)
	}
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	grpcAddr := flag.String("grpc-addr", "localhost:50051", "gRPC server address")
	workers := flag.Int("workers", 50, "Concurrent workers")
	pairs := flag.Int("pairs", 100, "Reciprocal order pairs per worker")
	rps := flag.Float64("rps", 500, "Request rate limit (0 disables)")
	flag.Parse()

	conn, err := grpc.NewClient(*grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info().Int("workers", *workers).Int("pairs", *pairs).Msg("Starting load test")
	rep := runLoad(ctx, api.NewClient(conn), loadConfig{
		Workers:        *workers,
		PairsPerWorker: *pairs,
		RequestsPerSec: *rps,
	})
	rep.print(os.Stdout)

	if rep.errors.Load() > 0 {
		os.Exit(1)
	}
}

func runLoad(ctx context.Context, client *api.Client, cfg loadConfig) *report {
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
		burst = int(cfg.RequestsPerSec)
		if burst < 1 {
			burst = 1
		}
	}
	limiter := rate.NewLimiter(limit, burst)
	rep := newReport()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if err := runWorker(ctx, client, limiter, rep, worker, cfg.PairsPerWorker); err != nil {
				rep.fail(err)
			}
		}(i)
	}
	wg.Wait()
	rep.duration = time.Since(start)
	return rep
}

func runWorker(ctx context.Context, client *api.Client, limiter *rate.Limiter, rep *report, worker, pairs int) error {
	alice, err := core.GenerateActorID()
	if err != nil {
		return err
	}
	bob, err := core.GenerateActorID()
	if err != nil {
		return err
	}
	aliceCtx := api.WithActor(ctx, alice.String())
	bobCtx := api.WithActor(ctx, bob.String())
	// per-worker asset names keep workers from matching each other's orders
	offered := fmt.Sprintf("ETH-%d", worker)
	wanted := fmt.Sprintf("VARA-%d", worker)

	call := func(op string, fn func() error) {
		if err := limiter.Wait(ctx); err != nil {
			rep.fail(fmt.Errorf("rate limiter: %w", err))
			return
		}
		start := time.Now()
		if err := fn(); err != nil {
			rep.fail(fmt.Errorf("worker %d %s: %w", worker, op, err))
			return
		}
		rep.record(op, time.Since(start))
	}

	for j := 0; j < pairs && ctx.Err() == nil; j++ {
		amount := fmt.Sprintf("%d", j+1)
		call("add", func() error {
			_, err := client.AddOrder(aliceCtx, pairDraft(offered, amount, wanted, "2"))
			return err
		})
		call("add", func() error {
			_, err := client.AddOrder(bobCtx, pairDraft(wanted, "2", offered, amount))
			return err
		})
		call("check", func() error {
			_, err := client.CheckOrders(bobCtx, &api.CheckOrdersRequest{})
			return err
		})
	}
	return nil
}

func pairDraft(alpha, alphaAmount, beta, betaAmount string) *api.OrderDraft {
	return &api.OrderDraft{
		UserSlippage:    "0.01",
		AlphaAsset:      api.Asset{Name: alpha, NominalAmount: alphaAmount},
		BetaAsset:       api.Asset{Name: beta, NominalAmount: betaAmount},
		AlphaAssetPrice: "100",
		BetaAssetPrice:  "100",
	}
}
