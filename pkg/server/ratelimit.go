package server

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/erain9/swapbook/pkg/api"
	"github.com/erain9/swapbook/pkg/logging"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// RateLimiter hands out one token bucket per caller
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewRateLimiter creates a limiter allowing rps requests per second per
// caller with the given burst. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

// Allow reports whether key may issue one more request now
func (r *RateLimiter) Allow(key string) bool {
	if r.limit == rate.Inf {
		return true
	}

	r.mu.Lock()
	limiter, ok := r.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(r.limit, r.burst)
		r.limiters[key] = limiter
	}
	r.mu.Unlock()

	return limiter.Allow()
}

// UnaryServerInterceptor rejects calls over the caller's budget with
// ResourceExhausted. Callers are keyed by actor id, falling back to the
// peer address.
func (r *RateLimiter) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		key := grpcRateKey(ctx)
		if !r.Allow(key) {
			logger := logging.FromContext(ctx)
			logger.Warn().
				Str("key", key).
				Str("grpc.method", info.FullMethod).
				Msg("Rate limit exceeded")
			return nil, status.Error(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(ctx, req)
	}
}

// Middleware rejects HTTP requests over the caller's budget with 429
func (r *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !r.Allow(httpRateKey(req)) {
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func grpcRateKey(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if actors := md.Get(api.ActorMetadataKey); len(actors) > 0 && actors[0] != "" {
			return "actor:" + actors[0]
		}
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return "ip:" + hostOf(p.Addr.String())
	}
	return "unknown"
}

func httpRateKey(req *http.Request) string {
	if actor := actorFromRequest(req); actor != "" {
		return "actor:" + actor
	}
	return "ip:" + hostOf(req.RemoteAddr)
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
