package vasttrafik

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
)

const singleDepartureBoard = `{
  "DepartureBoard": {
    "serverdate": "2024-03-11",
    "servertime": "08:00",
    "Departure": {
      "name": "Spårvagn 6", "sname": "6", "type": "TRAM", "stopid": "9022014001960001",
      "stop": "Chalmers, Göteborg", "time": "08:04", "date": "2024-03-11",
      "rtTime": "08:05", "rtDate": "2024-03-11",
      "direction": "Kortedala via Centralstationen", "track": "A",
      "fgColor": "#fa8719", "bgColor": "#ffffff", "night": true
    }
  }
}`

const arrayDepartureBoard = `{
  "DepartureBoard": {
    "serverdate": "2024-03-11",
    "servertime": "08:00",
    "Departure": [{
      "name": "Spårvagn 6", "sname": "6", "type": "TRAM", "stopid": "9022014001960001",
      "stop": "Chalmers, Göteborg", "time": "08:04", "date": "2024-03-11",
      "rtTime": "08:05", "rtDate": "2024-03-11",
      "direction": "Kortedala via Centralstationen", "track": "A",
      "fgColor": "#fa8719", "bgColor": "#ffffff", "night": true
    }]
  }
}`

func decodeBoard(t *testing.T, raw string) *DepartureBoard {
	t.Helper()
	var body departureBoardResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &body))
	require.NotNil(t, body.DepartureBoard)
	return body.DepartureBoard
}

func TestParseDepartures_SingleObjectEqualsArray(t *testing.T) {
	single, err := ParseDepartures(decodeBoard(t, singleDepartureBoard), "9022014001960001", Stockholm)
	require.NoError(t, err)
	many, err := ParseDepartures(decodeBoard(t, arrayDepartureBoard), "9022014001960001", Stockholm)
	require.NoError(t, err)

	assert.Equal(t, many, single)
	require.Len(t, single.Departures["6"]["kortedala-via-centralstationen"], 1)
}

func TestParseDepartures_Normalizes(t *testing.T) {
	stop, err := ParseDepartures(decodeBoard(t, singleDepartureBoard), "9022014001960001", Stockholm)
	require.NoError(t, err)

	assert.Equal(t, StopInfo{ID: "9022014001960001", Name: "Chalmers, Göteborg", ShortName: "Chalmers"}, stop.Stop)

	d := stop.Departures["6"]["kortedala-via-centralstationen"][0]
	assert.Equal(t, "TRAM", d.Vehicle)
	assert.Equal(t, Line{Name: "Spårvagn 6", ShortName: "6"}, d.Line)
	assert.Equal(t, Direction{Long: "Kortedala via Centralstationen", Short: "Kortedala"}, d.Direction)
	assert.Equal(t, Colors{Foreground: "#fa8719", Background: "#ffffff"}, d.Colors)
	assert.Equal(t, "A", d.Track)
	require.NotNil(t, d.Night)
	assert.True(t, *d.Night)
	assert.Nil(t, d.Booking)

	assert.True(t, d.Departure.Realtime)
	assert.Equal(t, "2024-03-11", d.Departure.Date)
	assert.Equal(t, "08:05", d.Departure.Time)
	assert.Equal(t, (5 * time.Minute).Milliseconds(), d.Departure.WaitMs)
	assert.Equal(t, 5.0, d.Departure.Wait.Minutes)
	// Stockholm is UTC+1 in March before the DST switch
	assert.Equal(t, time.Date(2024, 3, 11, 7, 5, 0, 0, time.UTC), d.Departure.DatetimeUTC)
}

func TestParseDepartures_Realtime(t *testing.T) {
	tests := []struct {
		name         string
		rtDate       string
		rtTime       string
		wantRealtime bool
		wantTime     string
	}{
		{name: "both realtime fields", rtDate: "2024-03-11", rtTime: "08:07", wantRealtime: true, wantTime: "08:07"},
		{name: "missing realtime time", rtDate: "2024-03-11", wantTime: "08:04"},
		{name: "missing realtime date", rtTime: "08:07", wantTime: "08:04"},
		{name: "no realtime fields", wantTime: "08:04"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			board := &DepartureBoard{
				ServerDate: "2024-03-11",
				ServerTime: "08:00",
				Departure: oneOrMany[RawDeparture]{{
					SName: "6", Stop: "Chalmers, Göteborg", Direction: "Kortedala",
					Date: "2024-03-11", Time: "08:04", RTDate: tt.rtDate, RTTime: tt.rtTime,
				}},
			}

			stop, err := ParseDepartures(board, "1", Stockholm)
			require.NoError(t, err)

			d := stop.Departures["6"]["kortedala"][0]
			assert.Equal(t, tt.wantRealtime, d.Departure.Realtime)
			assert.Equal(t, tt.wantTime, d.Departure.Time)
		})
	}
}

func TestParseDepartures_EmptyBoard(t *testing.T) {
	stop, err := ParseDepartures(decodeBoard(t, `{"DepartureBoard":{"serverdate":"2024-03-11","servertime":"08:00"}}`), "9022014001960001", Stockholm)
	require.NoError(t, err)

	b, err := json.Marshal(stop)
	require.NoError(t, err)
	assert.JSONEq(t, `{"stop":{"id":"9022014001960001"}}`, string(b))

	stop, err = ParseDepartures(decodeBoard(t, `{"DepartureBoard":{"Departure":[]}}`), "42", Stockholm)
	require.NoError(t, err)
	assert.Equal(t, &Stop{Stop: StopInfo{ID: "42"}}, stop)
}

func TestParseDepartures_GroupsByLineAndFullDirection(t *testing.T) {
	board := &DepartureBoard{
		ServerDate: "2024-03-11",
		ServerTime: "08:00",
		Departure: oneOrMany[RawDeparture]{
			{SName: "6", Stop: "Chalmers", Direction: "Kortedala via Centralstationen", Date: "2024-03-11", Time: "08:04"},
			{SName: "6", Stop: "Chalmers", Direction: "Kortedala", Date: "2024-03-11", Time: "08:06"},
			{SName: "6", Stop: "Chalmers", Direction: "Kortedala via Centralstationen", Date: "2024-03-11", Time: "08:14"},
			{SName: "16", Stop: "Chalmers", Direction: "Eketrägatan", Date: "2024-03-11", Time: "08:05"},
		},
	}

	stop, err := ParseDepartures(board, "1", Stockholm)
	require.NoError(t, err)

	require.Len(t, stop.Departures, 2)
	require.Len(t, stop.Departures["6"], 2, "directions with different via text must not merge")

	via := stop.Departures["6"]["kortedala-via-centralstationen"]
	require.Len(t, via, 2)
	assert.Equal(t, "08:04", via[0].Departure.Time)
	assert.Equal(t, "08:14", via[1].Departure.Time)

	assert.Len(t, stop.Departures["6"]["kortedala"], 1)
	assert.Len(t, stop.Departures["16"]["eketragatan"], 1)
	assert.Equal(t, "Chalmers", stop.Stop.ShortName)
}

func TestParseDepartures_WaitUsesServerClock(t *testing.T) {
	board := &DepartureBoard{
		ServerDate: "2024-03-11",
		ServerTime: "23:58",
		Departure: oneOrMany[RawDeparture]{
			{SName: "6", Stop: "Chalmers", Direction: "Kortedala", Date: "2024-03-12", Time: "00:03"},
			{SName: "6", Stop: "Chalmers", Direction: "Kortedala", Date: "2024-03-11", Time: "23:57"},
		},
	}

	stop, err := ParseDepartures(board, "1", Stockholm)
	require.NoError(t, err)

	group := stop.Departures["6"]["kortedala"]
	assert.Equal(t, (5 * time.Minute).Milliseconds(), group[0].Departure.WaitMs)
	assert.Equal(t, (-time.Minute).Milliseconds(), group[1].Departure.WaitMs)
}

func TestParseDepartures_Malformed(t *testing.T) {
	board := &DepartureBoard{
		ServerDate: "2024-03-11",
		ServerTime: "8 o'clock",
		Departure:  oneOrMany[RawDeparture]{{SName: "6", Date: "2024-03-11", Time: "08:04"}},
	}

	_, err := ParseDepartures(board, "1", Stockholm)
	assert.ErrorIs(t, err, rate_limiter.MalformedResponseErr)
}

func TestShortDirection(t *testing.T) {
	tests := map[string]string{
		"Kortedala":                        "Kortedala",
		"Kortedala via Centralstationen":   "Kortedala",
		"Torslanda, Amhult":                "Torslanda",
		"Torslanda, Amhult via Lindholmen": "Torslanda",
	}
	for in, want := range tests {
		assert.Equal(t, want, ShortDirection(in), in)
	}
}
