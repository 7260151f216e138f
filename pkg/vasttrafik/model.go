package vasttrafik

import (
	"time"
)

// Stop is the normalized departure board of one stop. Departures is omitted
// when the board was empty.
type Stop struct {
	Stop       StopInfo      `json:"stop"`
	Departures DepartureList `json:"departures,omitempty"`
}

type StopInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	ShortName string `json:"shortName,omitempty"`
}

// DepartureList groups departures by line short name, then by direction slug.
type DepartureList map[string]map[string][]Departure

type Departure struct {
	Vehicle       string        `json:"vehicle"`
	Line          Line          `json:"line"`
	Direction     Direction     `json:"direction"`
	Departure     DepartureTime `json:"departure"`
	Track         string        `json:"track,omitempty"`
	Colors        Colors        `json:"colors"`
	Booking       *bool         `json:"booking,omitempty"`
	Night         *bool         `json:"night,omitempty"`
	Accessibility []string      `json:"accessibility,omitempty"`
}

type Line struct {
	Name      string `json:"name"`
	ShortName string `json:"shortName"`
}

type Direction struct {
	Long  string `json:"long"`
	Short string `json:"short"`
}

type DepartureTime struct {
	Realtime    bool      `json:"realtime"`
	WaitMs      int64     `json:"waitMs"`
	Wait        Wait      `json:"wait"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	DatetimeUTC time.Time `json:"datetimeUtc"`
}

type Wait struct {
	Milliseconds int64   `json:"milliseconds"`
	Seconds      float64 `json:"seconds"`
	Minutes      float64 `json:"minutes"`
}

type Colors struct {
	Foreground string `json:"foreground"`
	Background string `json:"background"`
}
