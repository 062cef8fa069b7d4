package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type source struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// sources holds one token bucket per request source. Buckets idle for longer
// than ttl are swept; a swept source starts again with a full bucket, which
// is what it would have refilled to anyway.
type sources struct {
	buckets map[string]*source
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	mu      sync.Mutex

	stop      chan struct{}
	stopOnce  sync.Once
	sweeperWG sync.WaitGroup
}

func newSources(limit rate.Limit, burst int, ttl time.Duration) *sources {
	return &sources{
		buckets: make(map[string]*source),
		limit:   limit,
		burst:   burst,
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
}

// get returns the bucket for key, creating it on first sight.
func (s *sources) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.buckets[key]
	if !ok {
		src = &source{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = src
	}
	src.lastSeen = now

	return src.limiter
}

// sweep drops buckets not touched since now-ttl and reports how many went.
func (s *sources) sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, src := range s.buckets {
		if src.lastSeen.Before(cutoff) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

func (s *sources) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

func (s *sources) startSweeper(every time.Duration, now func() time.Time) {
	s.sweeperWG.Add(1)
	go func() {
		defer s.sweeperWG.Done()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep(now())
			case <-s.stop:
				return
			}
		}
	}()
}

// close stops the sweeper and waits for it to exit.
func (s *sources) close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	s.sweeperWG.Wait()
}
