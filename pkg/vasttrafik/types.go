package vasttrafik

import (
	"bytes"
	"encoding/json"
)

// oneOrMany decodes a JSON value that is either a single T or an array of T.
// The departure board collapses one-element arrays into a bare object.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*o = nil
		return nil
	}

	if b[0] == '[' {
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}

	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}

type departureBoardResponse struct {
	DepartureBoard *DepartureBoard `json:"DepartureBoard"`
}

// DepartureBoard is the raw body of the departureBoard endpoint.
type DepartureBoard struct {
	ServerDate string                  `json:"serverdate"`
	ServerTime string                  `json:"servertime"`
	Error      string                  `json:"error"`
	ErrorText  string                  `json:"errorText"`
	Departure  oneOrMany[RawDeparture] `json:"Departure"`
}

type RawDeparture struct {
	Name          string            `json:"name"`
	SName         string            `json:"sname"`
	Type          string            `json:"type"`
	StopID        string            `json:"stopid"`
	Stop          string            `json:"stop"`
	Time          string            `json:"time"`
	RTTime        string            `json:"rtTime"`
	Date          string            `json:"date"`
	RTDate        string            `json:"rtDate"`
	JourneyID     string            `json:"journeyid"`
	Direction     string            `json:"direction"`
	Track         string            `json:"track"`
	RTTrack       string            `json:"rtTrack"`
	FgColor       string            `json:"fgColor"`
	BgColor       string            `json:"bgColor"`
	Stroke        string            `json:"stroke"`
	Booking       *bool             `json:"booking"`
	Night         *bool             `json:"night"`
	Accessibility oneOrMany[string] `json:"accessibility"`
}
