// Package vasttrafik polls the Västtrafik departure board and normalizes it
// into departures grouped by line and direction.
package vasttrafik

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
)

const DefaultBaseURL = "https://api.vasttrafik.se/bin/rest.exe/v2"

// TokenSource supplies the bearer token for each call.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

type Client struct {
	requester rate_limiter.Throttled
	tokens    TokenSource
	baseURL   string
	loc       *time.Location
}

type Option func(c *Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func NewClient(requester rate_limiter.Throttled, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		requester: requester,
		tokens:    tokens,
		baseURL:   DefaultBaseURL,
		loc:       Stockholm,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetDepartures fetches the departures from stopID within timeSpan minutes of at.
func (c *Client) GetDepartures(ctx context.Context, stopID string, at time.Time, timeSpan int) (*Stop, error) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	local := at.In(c.loc)
	resp, err := c.requester.PerformRequest(ctx, rate_limiter.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/departureBoard",
		Header: http.Header{"Authorization": {"Bearer " + token}},
		Query: url.Values{
			"id":                {stopID},
			"date":              {local.Format(time.DateOnly)},
			"time":              {local.Format("15:04")},
			"timeSpan":          {strconv.Itoa(timeSpan)},
			"needJourneyDetail": {"0"},
			"format":            {"json"},
		},
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rate_limiter.NewStatusError(resp)
	}

	var body departureBoardResponse
	if err := resp.DecodeJSON(&body); err != nil {
		return nil, err
	}
	if body.DepartureBoard == nil {
		return nil, fmt.Errorf("%w: missing DepartureBoard", rate_limiter.MalformedResponseErr)
	}
	if body.DepartureBoard.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", rate_limiter.MalformedResponseErr, body.DepartureBoard.Error, body.DepartureBoard.ErrorText)
	}

	return ParseDepartures(body.DepartureBoard, stopID, c.loc)
}
