package rate_limiter

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// State is a point-in-time snapshot of a rate limiter, exposed on the status API.
type State struct {
	Algorithm  string    `json:"algorithm"`
	Capacity   int       `json:"capacity"`
	Remaining  int       `json:"remaining"`
	LastRefill time.Time `json:"last_refill"`
	// NextRefill is the earliest time a denied request could be admitted.
	NextRefill time.Time `json:"next_refill"`
}

// Request describes a single outgoing call. An empty Method means GET.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Body   []byte
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v. A non-JSON content type or an
// undecodable body is reported as MalformedResponseErr.
func (r *Response) DecodeJSON(v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || !strings.HasSuffix(mediaType, "json") {
			return fmt.Errorf("%w: unexpected content type %q", MalformedResponseErr, ct)
		}
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", MalformedResponseErr, err)
	}
	return nil
}
