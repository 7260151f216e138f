// Package scheduler fires jobs on fixed intervals and at daily wall-clock
// times. Every job has its own timer; a fired run never delays another job or
// the next run of the same job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github/martinmaurice/apipoller/pkg/config"
)

// Job is one poll. It receives a context carrying its correlation id.
type Job func(ctx context.Context)

type entry struct {
	name string
	next func(now time.Time) time.Time
	job  Job
}

type Scheduler struct {
	logger *slog.Logger
	loc    *time.Location
	now    func() time.Time

	mu      sync.Mutex
	entries []entry
	cancel  context.CancelFunc
	loops   sync.WaitGroup
	runs    sync.WaitGroup
}

type Option func(s *Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithLocation sets the zone daily jobs are expressed in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.loc = loc
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: slog.Default(),
		loc:    time.UTC,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Every runs job at every multiple of interval, counted from the zero time,
// so a 10s job fires at :00, :10, :20 regardless of when it was added.
func (s *Scheduler) Every(name string, interval time.Duration, job Job) {
	if interval <= 0 {
		panic(fmt.Sprintf("scheduler: job %s has non-positive interval %s", name, interval))
	}
	s.add(entry{
		name: name,
		next: func(now time.Time) time.Time { return nextInterval(now, interval) },
		job:  job,
	})
}

// Daily runs job once a day at the given time of day.
func (s *Scheduler) Daily(name string, at config.TimeOfDay, job Job) {
	loc := s.loc
	s.add(entry{
		name: name,
		next: func(now time.Time) time.Time { return nextDaily(now, at, loc) },
		job:  job,
	})
}

func (s *Scheduler) add(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Start launches one timer loop per job. Jobs added after Start are ignored.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.loops.Add(1)
		go s.loop(ctx, e)
	}
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop cancels the context handed to running jobs and waits for them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	s.loops.Wait()
	s.runs.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	defer s.loops.Done()

	for {
		// computed from the current time, so a stall past a boundary
		// drops the missed runs instead of firing them late
		now := s.now()
		timer := time.NewTimer(e.next(now).Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		s.fire(ctx, e)
	}
}

func (s *Scheduler) fire(ctx context.Context, e entry) {
	id := uuid.NewString()
	s.runs.Add(1)

	go func() {
		defer s.runs.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("job panicked",
					"job", e.name,
					"correlation_id", id,
					"panic", r,
					"stack", string(debug.Stack()),
				)
			}
		}()

		e.job(WithCorrelationID(ctx, id))
	}()
}

func nextInterval(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

func nextDaily(now time.Time, at config.TimeOfDay, loc *time.Location) time.Time {
	local := now.In(loc)
	y, m, d := local.Date()

	next := time.Date(y, m, d, at.Hour, at.Minute, at.Second, 0, loc)
	if !next.After(now) {
		next = time.Date(y, m, d+1, at.Hour, at.Minute, at.Second, 0, loc)
	}
	return next
}

type correlationIDKey struct{}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the id of the run ctx belongs to, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}
