package vasttrafik

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/atomic"
)

// StopDescriptor is one watched stop. TimeSpan of zero means the source default.
type StopDescriptor struct {
	ID       string `json:"id"`
	Key      string `json:"key"`
	Active   bool   `json:"active"`
	TimeSpan int    `json:"timeSpan"`
}

// StopList holds the watched stops. Every update replaces the whole list, so a
// reader sees either the previous or the next snapshot, never a mix.
type StopList struct {
	stops *atomic.Pointer[[]StopDescriptor]
}

func NewStopList(initial []StopDescriptor) *StopList {
	l := &StopList{stops: atomic.NewPointer[[]StopDescriptor](nil)}
	l.Replace(initial)
	return l
}

func (l *StopList) Replace(stops []StopDescriptor) {
	cp := append([]StopDescriptor(nil), stops...)
	l.stops.Store(&cp)
}

// Snapshot returns the current list. Callers must not modify it.
func (l *StopList) Snapshot() []StopDescriptor {
	return *l.stops.Load()
}

func (l *StopList) Active() []StopDescriptor {
	var active []StopDescriptor
	for _, s := range l.Snapshot() {
		if s.Active {
			active = append(active, s)
		}
	}
	return active
}

// ParseStops decodes a stops snapshot. It accepts a JSON array of descriptors
// or an object of descriptors keyed by their key.
func ParseStops(b []byte) ([]StopDescriptor, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil, nil
	}

	var stops []StopDescriptor
	if b[0] == '[' {
		if err := json.Unmarshal(b, &stops); err != nil {
			return nil, fmt.Errorf("decoding stops: %w", err)
		}
	} else {
		var byKey map[string]StopDescriptor
		if err := json.Unmarshal(b, &byKey); err != nil {
			return nil, fmt.Errorf("decoding stops: %w", err)
		}
		for key, s := range byKey {
			if s.Key == "" {
				s.Key = key
			}
			stops = append(stops, s)
		}
		sort.Slice(stops, func(i, j int) bool { return stops[i].Key < stops[j].Key })
	}

	for i, s := range stops {
		if s.ID == "" {
			return nil, fmt.Errorf("stop %d (%q) has no id", i, s.Key)
		}
	}
	return stops, nil
}
