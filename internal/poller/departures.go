// Package poller turns source client results into sink writes. Each job is
// run by the scheduler and owns the publishing layout of its source.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bluele/gcache"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
	"github/martinmaurice/apipoller/pkg/scheduler"
	"github/martinmaurice/apipoller/pkg/sink"
	"github/martinmaurice/apipoller/pkg/vasttrafik"
)

const (
	vasttrafikRoot     = "vasttrafik"
	stopsLookupSegment = "stopsLookup"
	departuresSegment  = "departures"

	lookupCacheSize  = 256
	maxStopsInFlight = 8
)

type DepartureFetcher interface {
	GetDepartures(ctx context.Context, stopID string, at time.Time, timeSpan int) (*vasttrafik.Stop, error)
}

// DeparturesJob polls every active watched stop and publishes its board under
// vasttrafik/departures/<stop slug>.
type DeparturesJob struct {
	client          DepartureFetcher
	stops           *vasttrafik.StopList
	store           sink.Store
	status          *SourceStatus
	logger          *slog.Logger
	defaultTimeSpan int
	now             func() time.Time

	// stop id -> departures slug, mirrors vasttrafik/stopsLookup
	lookup gcache.Cache
}

func NewDeparturesJob(client DepartureFetcher, stops *vasttrafik.StopList, store sink.Store, status *SourceStatus, defaultTimeSpan int, logger *slog.Logger) *DeparturesJob {
	return &DeparturesJob{
		client:          client,
		stops:           stops,
		store:           store,
		status:          status,
		logger:          logger.With("source", "vasttrafik"),
		defaultTimeSpan: defaultTimeSpan,
		now:             time.Now,
		lookup:          gcache.New(lookupCacheSize).LRU().Build(),
	}
}

func (j *DeparturesJob) Run(ctx context.Context) {
	stops := j.stops.Active()
	if len(stops) == 0 {
		j.logger.Debug("no active stops")
		return
	}

	at := j.now()
	var g errgroup.Group
	g.SetLimit(maxStopsInFlight)
	for _, stop := range stops {
		g.Go(func() error {
			j.poll(ctx, stop, at)
			return nil
		})
	}
	_ = g.Wait()
}

func (j *DeparturesJob) poll(ctx context.Context, desc vasttrafik.StopDescriptor, at time.Time) {
	logger := j.logger.With("stop_id", desc.ID, "correlation_id", scheduler.CorrelationID(ctx))

	timeSpan := desc.TimeSpan
	if timeSpan <= 0 {
		timeSpan = j.defaultTimeSpan
	}

	stop, err := j.client.GetDepartures(ctx, desc.ID, at, timeSpan)
	j.status.Record(err)
	if errors.Is(err, rate_limiter.ThrottledErr) {
		logger.Debug("departures throttled")
		return
	}
	if err != nil {
		logger.Warn("fetching departures failed", "error", err)
		return
	}

	if stop.Stop.Name == "" {
		j.clear(ctx, stop.Stop.ID, logger)
		return
	}

	key := slug.Make(stop.Stop.Name)
	if err := j.remember(ctx, stop.Stop.ID, key); err != nil {
		logger.Error("writing stop lookup failed", "error", err)
	}

	path := sink.Path(vasttrafikRoot, departuresSegment, key)
	if err := j.store.Set(ctx, path, stop); err != nil {
		logger.Error("publishing departures failed", "path", path, "error", err)
		return
	}
	logger.Info("published departures", "path", path, "stop", stop.Stop.ShortName)
}

// clear drops the departures of a stop whose board came back empty, keeping
// the rest of its record. A stop never published before has nothing to clear.
func (j *DeparturesJob) clear(ctx context.Context, stopID string, logger *slog.Logger) {
	key, ok, err := j.lookupKey(ctx, stopID)
	if err != nil {
		logger.Error("reading stop lookup failed", "error", err)
		return
	}
	if !ok {
		logger.Debug("empty board for unknown stop")
		return
	}

	path := sink.Path(vasttrafikRoot, departuresSegment, key)
	if err := j.store.Update(ctx, path, map[string]any{departuresSegment: nil}); err != nil {
		logger.Error("clearing departures failed", "path", path, "error", err)
		return
	}
	logger.Info("cleared departures", "path", path)
}

func (j *DeparturesJob) lookupKey(ctx context.Context, stopID string) (string, bool, error) {
	if v, err := j.lookup.Get(stopID); err == nil {
		return v.(string), true, nil
	}

	var key string
	ok, err := j.store.Get(ctx, sink.Path(vasttrafikRoot, stopsLookupSegment, stopID), &key)
	if err != nil || !ok {
		return "", false, err
	}
	_ = j.lookup.Set(stopID, key)
	return key, true, nil
}

// remember writes the stop lookup unless it already holds key.
func (j *DeparturesJob) remember(ctx context.Context, stopID, key string) error {
	if v, err := j.lookup.Get(stopID); err == nil && v.(string) == key {
		return nil
	}
	if err := j.store.Set(ctx, sink.Path(vasttrafikRoot, stopsLookupSegment, stopID), key); err != nil {
		return err
	}
	return j.lookup.Set(stopID, key)
}
