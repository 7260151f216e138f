package poller

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github/martinmaurice/apipoller/pkg/enum"
	"github/martinmaurice/apipoller/pkg/rate_limiter"
	"github/martinmaurice/apipoller/pkg/schoolmeal"
)

// SourceStatus counts the outcomes of one source's polls.
type SourceStatus struct {
	name    enum.Source
	limiter rate_limiter.RateLimiter

	successes   atomic.Int64
	failures    atomic.Int64
	throttled   atomic.Int64
	notModified atomic.Int64
	lastSuccess atomic.Time
	lastFailure atomic.Time
	lastError   atomic.String
}

type StatusSnapshot struct {
	Source      enum.Source        `json:"source"`
	Successes   int64              `json:"successes"`
	Failures    int64              `json:"failures"`
	Throttled   int64              `json:"throttled"`
	NotModified int64              `json:"not_modified"`
	LastSuccess *time.Time         `json:"last_success,omitempty"`
	LastFailure *time.Time         `json:"last_failure,omitempty"`
	LastError   string             `json:"last_error,omitempty"`
	Throttle    rate_limiter.State `json:"throttle"`
}

// Record classifies err. Throttled and not-modified polls are neither
// successes nor failures.
func (s *SourceStatus) Record(err error) {
	switch {
	case err == nil:
		s.successes.Inc()
		s.lastSuccess.Store(time.Now())
	case errors.Is(err, rate_limiter.ThrottledErr):
		s.throttled.Inc()
	case errors.Is(err, schoolmeal.NotModifiedErr):
		s.notModified.Inc()
	default:
		s.failures.Inc()
		s.lastFailure.Store(time.Now())
		s.lastError.Store(err.Error())
	}
}

func (s *SourceStatus) Snapshot() StatusSnapshot {
	snap := StatusSnapshot{
		Source:      s.name,
		Successes:   s.successes.Load(),
		Failures:    s.failures.Load(),
		Throttled:   s.throttled.Load(),
		NotModified: s.notModified.Load(),
		LastError:   s.lastError.Load(),
	}
	if t := s.lastSuccess.Load(); !t.IsZero() {
		snap.LastSuccess = &t
	}
	if t := s.lastFailure.Load(); !t.IsZero() {
		snap.LastFailure = &t
	}
	if s.limiter != nil {
		snap.Throttle = s.limiter.State()
	}
	return snap
}

// Registry holds the status of every configured source.
type Registry struct {
	mu      sync.RWMutex
	sources map[enum.Source]*SourceStatus
}

func NewRegistry() *Registry {
	return &Registry{sources: make(map[enum.Source]*SourceStatus)}
}

// Register returns the status of source, creating it on first use.
func (r *Registry) Register(source enum.Source, limiter rate_limiter.RateLimiter) *SourceStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sources[source]; ok {
		return s
	}
	s := &SourceStatus{name: source, limiter: limiter}
	r.sources[source] = s
	return s
}

func (r *Registry) Get(source enum.Source) (StatusSnapshot, bool) {
	r.mu.RLock()
	s, ok := r.sources[source]
	r.mu.RUnlock()
	if !ok {
		return StatusSnapshot{}, false
	}
	return s.Snapshot(), true
}

// All returns every source's snapshot ordered by name.
func (r *Registry) All() []StatusSnapshot {
	r.mu.RLock()
	statuses := make([]*SourceStatus, 0, len(r.sources))
	for _, s := range r.sources {
		statuses = append(statuses, s)
	}
	r.mu.RUnlock()

	snaps := make([]StatusSnapshot, 0, len(statuses))
	for _, s := range statuses {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Source < snaps[j].Source })
	return snaps
}
