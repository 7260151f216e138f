package vasttrafik

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/gosimple/slug"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
)

const boardTimeLayout = "2006-01-02 15:04"

// Stockholm is the civil calendar the departure board is expressed in.
var Stockholm = mustLoadLocation("Europe/Stockholm")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// ShortDirection strips a trailing " via ..." and then any comma suffix.
func ShortDirection(direction string) string {
	if i := strings.Index(direction, " via"); i > 0 {
		direction = direction[:i]
	}
	if i := strings.Index(direction, ","); i > 0 {
		direction = direction[:i]
	}
	return strings.TrimSpace(direction)
}

// DirectionKey is the grouping key of a direction. It is derived from the full
// direction, so a change in via text never merges two groups.
func DirectionKey(direction string) string {
	return slug.Make(direction)
}

func stopShortName(name string) string {
	if i := strings.Index(name, ","); i > 0 {
		return name[:i]
	}
	return name
}

func parseBoardTime(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(boardTimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", rate_limiter.MalformedResponseErr, err)
	}
	return t, nil
}

// ParseDepartures normalizes a raw departure board. An empty board yields a
// Stop carrying only stopID.
func ParseDepartures(board *DepartureBoard, stopID string, loc *time.Location) (*Stop, error) {
	if board == nil || len(board.Departure) == 0 {
		return &Stop{Stop: StopInfo{ID: stopID}}, nil
	}

	serverTime, err := parseBoardTime(board.ServerDate, board.ServerTime, loc)
	if err != nil {
		return nil, fmt.Errorf("server time: %w", err)
	}

	departures := make(DepartureList)
	for _, raw := range board.Departure {
		d, err := parseDeparture(raw, serverTime, loc)
		if err != nil {
			return nil, fmt.Errorf("departure %s %s: %w", raw.SName, raw.JourneyID, err)
		}

		byDirection, ok := departures[raw.SName]
		if !ok {
			byDirection = make(map[string][]Departure)
			departures[raw.SName] = byDirection
		}
		key := DirectionKey(raw.Direction)
		byDirection[key] = append(byDirection[key], d)
	}

	first := board.Departure[0]
	if stopID == "" {
		stopID = first.StopID
	}

	return &Stop{
		Stop: StopInfo{
			ID:        stopID,
			Name:      first.Stop,
			ShortName: stopShortName(first.Stop),
		},
		Departures: departures,
	}, nil
}

func parseDeparture(raw RawDeparture, serverTime time.Time, loc *time.Location) (Departure, error) {
	realtime := raw.RTDate != "" && raw.RTTime != ""
	date, clock := raw.Date, raw.Time
	if realtime {
		date, clock = raw.RTDate, raw.RTTime
	}

	at, err := parseBoardTime(date, clock, loc)
	if err != nil {
		return Departure{}, err
	}

	// measured against the board's own clock, not ours
	wait := at.Sub(serverTime)

	track := raw.Track
	if raw.RTTrack != "" {
		track = raw.RTTrack
	}

	return Departure{
		Vehicle: raw.Type,
		Line: Line{
			Name:      raw.Name,
			ShortName: raw.SName,
		},
		Direction: Direction{
			Long:  raw.Direction,
			Short: ShortDirection(raw.Direction),
		},
		Departure: DepartureTime{
			Realtime: realtime,
			WaitMs:   wait.Milliseconds(),
			Wait: Wait{
				Milliseconds: wait.Milliseconds(),
				Seconds:      wait.Seconds(),
				Minutes:      wait.Minutes(),
			},
			Date:        date,
			Time:        clock,
			DatetimeUTC: at.UTC(),
		},
		Track: track,
		Colors: Colors{
			Foreground: raw.FgColor,
			Background: raw.BgColor,
		},
		Booking:       raw.Booking,
		Night:         raw.Night,
		Accessibility: raw.Accessibility,
	}, nil
}
