// Package gbgcamera reads the Gothenburg traffic camera open data API.
package gbgcamera

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github/martinmaurice/apipoller/pkg/rate_limiter"
)

const DefaultBaseURL = "http://data.goteborg.se/TrafficCamera/v0.2"

// Camera is one entry of the camera catalogue.
type Camera struct {
	ID             int     `json:"Id"`
	Name           string  `json:"Name"`
	Model          string  `json:"Model"`
	Lat            float64 `json:"Lat"`
	Long           float64 `json:"Long"`
	CameraImageURL string  `json:"CameraImageUrl"`
}

// Image is a camera snapshot as returned by the API.
type Image struct {
	CameraID     int
	ContentType  string
	Data         []byte
	LastModified time.Time
}

type Client struct {
	requester rate_limiter.Throttled
	baseURL   string
	apiKey    string
}

type Option func(c *Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func NewClient(requester rate_limiter.Throttled, apiKey string, opts ...Option) *Client {
	c := &Client{
		requester: requester,
		baseURL:   DefaultBaseURL,
		apiKey:    apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetCameraImage fetches the latest snapshot of camera id. LastModified falls
// back to the response time when the API omits the header.
func (c *Client) GetCameraImage(ctx context.Context, id int) (*Image, error) {
	resp, err := c.requester.PerformRequest(ctx, rate_limiter.Request{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/CameraImage/%s/%d", c.baseURL, url.PathEscape(c.apiKey), id),
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rate_limiter.NewStatusError(resp)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: camera %d returned content type %q", rate_limiter.MalformedResponseErr, id, contentType)
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("%w: camera %d returned an empty image", rate_limiter.MalformedResponseErr, id)
	}

	lastModified := time.Now()
	if t, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		lastModified = t
	}

	return &Image{
		CameraID:     id,
		ContentType:  mediaType,
		Data:         resp.Body,
		LastModified: lastModified,
	}, nil
}

// GetCameras fetches the camera catalogue.
func (c *Client) GetCameras(ctx context.Context) ([]Camera, error) {
	resp, err := c.requester.PerformRequest(ctx, rate_limiter.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/TrafficCameras/" + url.PathEscape(c.apiKey),
		Query:  url.Values{"format": {"json"}},
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, rate_limiter.NewStatusError(resp)
	}

	var cameras []Camera
	if err := resp.DecodeJSON(&cameras); err != nil {
		return nil, err
	}
	return cameras, nil
}

// ImageName is the file name a snapshot taken at t is stored under.
func ImageName(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02_15-04") + ".jpg"
}

// ImageDir is the per camera directory below the image root.
func ImageDir(id int) string {
	return strconv.Itoa(id)
}
