package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/martinmaurice/apipoller/pkg/enum"
	"github/martinmaurice/apipoller/pkg/rate_limiter"
	"github/martinmaurice/apipoller/pkg/vasttrafik"
)

type fakeDepartures struct {
	mu        sync.Mutex
	results   map[string]*vasttrafik.Stop
	errs      map[string]error
	timeSpans map[string]int
}

func (f *fakeDepartures) GetDepartures(_ context.Context, stopID string, _ time.Time, timeSpan int) (*vasttrafik.Stop, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timeSpans == nil {
		f.timeSpans = make(map[string]int)
	}
	f.timeSpans[stopID] = timeSpan
	if err := f.errs[stopID]; err != nil {
		return nil, err
	}
	if stop, ok := f.results[stopID]; ok {
		return stop, nil
	}
	return &vasttrafik.Stop{Stop: vasttrafik.StopInfo{ID: stopID}}, nil
}

func chalmers() *vasttrafik.Stop {
	return &vasttrafik.Stop{
		Stop: vasttrafik.StopInfo{ID: "1", Name: "Chalmers, Göteborg", ShortName: "Chalmers"},
		Departures: vasttrafik.DepartureList{
			"6": {"kortedala": {{Vehicle: "TRAM", Line: vasttrafik.Line{Name: "Spårvagn 6", ShortName: "6"}}}},
		},
	}
}

func TestDeparturesJob_PublishesStop(t *testing.T) {
	mr, store := newTestStore(t)
	fetcher := &fakeDepartures{results: map[string]*vasttrafik.Stop{"1": chalmers()}}
	stops := vasttrafik.NewStopList([]vasttrafik.StopDescriptor{
		{ID: "1", Key: "chalmers", Active: true, TimeSpan: 30},
		{ID: "2", Key: "inactive"},
	})
	status := NewRegistry().Register(enum.Vasttrafik, nil)

	job := NewDeparturesJob(fetcher, stops, store, status, 60, discardLogger())
	job.Run(context.Background())

	lookup, err := mr.Get("vasttrafik/stopsLookup/1")
	require.NoError(t, err)
	assert.Equal(t, `"chalmers-goteborg"`, lookup)

	var published vasttrafik.Stop
	ok, err := store.Get(context.Background(), "vasttrafik/departures/chalmers-goteborg", &published)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Chalmers", published.Stop.ShortName)
	assert.Len(t, published.Departures["6"]["kortedala"], 1)

	assert.Equal(t, map[string]int{"1": 30}, fetcher.timeSpans, "inactive stops are skipped")
	assert.Equal(t, int64(1), status.Snapshot().Successes)
}

func TestDeparturesJob_DefaultTimeSpan(t *testing.T) {
	_, store := newTestStore(t)
	fetcher := &fakeDepartures{}
	stops := vasttrafik.NewStopList([]vasttrafik.StopDescriptor{{ID: "1", Active: true}})

	job := NewDeparturesJob(fetcher, stops, store, NewRegistry().Register(enum.Vasttrafik, nil), 45, discardLogger())
	job.Run(context.Background())

	assert.Equal(t, 45, fetcher.timeSpans["1"])
}

func TestDeparturesJob_EmptyBoardClearsDepartures(t *testing.T) {
	mr, store := newTestStore(t)
	fetcher := &fakeDepartures{results: map[string]*vasttrafik.Stop{"1": chalmers()}}
	stops := vasttrafik.NewStopList([]vasttrafik.StopDescriptor{{ID: "1", Active: true}})

	job := NewDeparturesJob(fetcher, stops, store, NewRegistry().Register(enum.Vasttrafik, nil), 60, discardLogger())
	job.Run(context.Background())

	fetcher.mu.Lock()
	delete(fetcher.results, "1")
	fetcher.mu.Unlock()
	job.Run(context.Background())

	raw, err := mr.Get("vasttrafik/departures/chalmers-goteborg")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stop":{"id":"1","name":"Chalmers, Göteborg","shortName":"Chalmers"}}`, raw)
}

func TestDeparturesJob_EmptyBoardUsesStoredLookup(t *testing.T) {
	mr, store := newTestStore(t)
	require.NoError(t, mr.Set("vasttrafik/stopsLookup/1", `"chalmers-goteborg"`))
	require.NoError(t, mr.Set("vasttrafik/departures/chalmers-goteborg", `{"stop":{"id":"1"},"departures":{"6":{}}}`))

	stops := vasttrafik.NewStopList([]vasttrafik.StopDescriptor{{ID: "1", Active: true}, {ID: "unknown", Active: true}})
	job := NewDeparturesJob(&fakeDepartures{}, stops, store, NewRegistry().Register(enum.Vasttrafik, nil), 60, discardLogger())
	job.Run(context.Background())

	raw, err := mr.Get("vasttrafik/departures/chalmers-goteborg")
	require.NoError(t, err)
	assert.JSONEq(t, `{"stop":{"id":"1"}}`, raw)
	assert.False(t, mr.Exists("vasttrafik/departures/"), "an unknown stop publishes nothing")
}

func TestDeparturesJob_FailuresAreIsolated(t *testing.T) {
	mr, store := newTestStore(t)
	fetcher := &fakeDepartures{
		results: map[string]*vasttrafik.Stop{"1": chalmers()},
		errs: map[string]error{
			"2": rate_limiter.ThrottledErr,
			"3": errors.New("connection reset"),
		},
	}
	stops := vasttrafik.NewStopList([]vasttrafik.StopDescriptor{
		{ID: "1", Active: true}, {ID: "2", Active: true}, {ID: "3", Active: true},
	})
	status := NewRegistry().Register(enum.Vasttrafik, nil)

	job := NewDeparturesJob(fetcher, stops, store, status, 60, discardLogger())
	job.Run(context.Background())

	assert.True(t, mr.Exists("vasttrafik/departures/chalmers-goteborg"))

	snap := status.Snapshot()
	assert.Equal(t, int64(1), snap.Successes)
	assert.Equal(t, int64(1), snap.Throttled)
	assert.Equal(t, int64(1), snap.Failures)
	assert.Equal(t, "connection reset", snap.LastError)
}

func TestDeparturesJob_SinkFailureIsLogged(t *testing.T) {
	fetcher := &fakeDepartures{results: map[string]*vasttrafik.Stop{"1": chalmers()}}
	stops := vasttrafik.NewStopList([]vasttrafik.StopDescriptor{{ID: "1", Active: true}})

	job := NewDeparturesJob(fetcher, stops, failingStore{}, NewRegistry().Register(enum.Vasttrafik, nil), 60, discardLogger())
	assert.NotPanics(t, func() { job.Run(context.Background()) })
}
