package ratelimiter

import (
	"math"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultRatePerSecond = 10
	defaultSourceTTL     = 10 * time.Minute
)

// Limiter throttles REST requests per source.
type Limiter interface {
	Allow(sourceKey string) bool
	GetSourceKey(r *http.Request) string
	Remaining(sourceKey string) int
	GetMaxBurst() int
	Close() error
}

type Options struct {
	MaxRatePerSecond int
	MaxBurst         int
	// CacheTTL is how long an idle source keeps its bucket.
	CacheTTL        time.Duration
	SourceHeaderKey string
}

// RateLimiter is a token bucket per source key, refilled at MaxRatePerSecond
// up to MaxBurst.
type RateLimiter struct {
	sources         *sources
	maxBurst        int
	sourceHeaderKey string
	now             func() time.Time
}

func New(options Options) Limiter {
	rl := newRateLimiter(options, time.Now)
	rl.sources.startSweeper(rl.sources.ttl, func() time.Time { return rl.now() })
	return rl
}

func newRateLimiter(options Options, now func() time.Time) *RateLimiter {
	if options.MaxRatePerSecond <= 0 {
		options.MaxRatePerSecond = defaultRatePerSecond
	}
	if options.MaxBurst <= 0 {
		options.MaxBurst = options.MaxRatePerSecond
	}
	if options.CacheTTL <= 0 {
		options.CacheTTL = defaultSourceTTL
	}

	return &RateLimiter{
		sources:         newSources(rate.Limit(options.MaxRatePerSecond), options.MaxBurst, options.CacheTTL),
		maxBurst:        options.MaxBurst,
		sourceHeaderKey: options.SourceHeaderKey,
		now:             now,
	}
}

func (rl *RateLimiter) Allow(sourceKey string) bool {
	now := rl.now()
	return rl.sources.get(sourceKey, now).AllowN(now, 1)
}

// Remaining reports the whole tokens left for sourceKey right now.
func (rl *RateLimiter) Remaining(sourceKey string) int {
	now := rl.now()
	tokens := rl.sources.get(sourceKey, now).TokensAt(now)
	if tokens <= 0 {
		return 0
	}
	return int(math.Floor(tokens))
}

func (rl *RateLimiter) GetMaxBurst() int {
	return rl.maxBurst
}

// GetSourceKey keys requests by client IP unless a source header is
// configured and present.
func (rl *RateLimiter) GetSourceKey(r *http.Request) string {
	if rl.sourceHeaderKey != "" {
		if key := r.Header.Get(rl.sourceHeaderKey); key != "" {
			return key
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Close stops the idle source sweeper.
func (rl *RateLimiter) Close() error {
	rl.sources.close()
	return nil
}
