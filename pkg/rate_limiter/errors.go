package rate_limiter

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ThrottledErr         = errors.New("request throttled")
	MalformedResponseErr = errors.New("malformed response")
)

// StatusError reports a response whose status code the caller did not expect.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d %s", e.Code, http.StatusText(e.Code))
}

// NewStatusError returns a *StatusError for resp.
func NewStatusError(resp *Response) error {
	return &StatusError{Code: resp.StatusCode}
}
