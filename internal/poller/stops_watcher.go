package poller

import (
	"context"
	"log/slog"
	"time"

	"github/martinmaurice/apipoller/pkg/sink"
	"github/martinmaurice/apipoller/pkg/vasttrafik"
)

const watchRetryDelay = 5 * time.Second

// StopsWatcher keeps a StopList in step with the stops feed in the sink.
// Every snapshot replaces the list wholesale.
type StopsWatcher struct {
	watcher sink.Watcher
	path    string
	stops   *vasttrafik.StopList
	logger  *slog.Logger
}

func NewStopsWatcher(watcher sink.Watcher, path string, stops *vasttrafik.StopList, logger *slog.Logger) *StopsWatcher {
	return &StopsWatcher{
		watcher: watcher,
		path:    path,
		stops:   stops,
		logger:  logger.With("source", "vasttrafik", "path", path),
	}
}

// Run watches until ctx is done, resubscribing after a lost connection.
func (w *StopsWatcher) Run(ctx context.Context) {
	for {
		err := w.watcher.Watch(ctx, w.path, w.apply)
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn("stops feed interrupted", "error", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRetryDelay):
		}
	}
}

func (w *StopsWatcher) apply(value []byte) {
	stops, err := vasttrafik.ParseStops(value)
	if err != nil {
		// keep the previous list rather than dropping every stop
		w.logger.Error("ignoring malformed stops snapshot", "error", err)
		return
	}
	w.stops.Replace(stops)
	w.logger.Info("watched stops replaced", "stops", len(stops))
}
