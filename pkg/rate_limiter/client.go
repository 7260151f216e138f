package rate_limiter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github/martinmaurice/apipoller/pkg/config"
	"github/martinmaurice/apipoller/pkg/enum"
)

// camera snapshots are the largest payloads we fetch
const maxResponseBodySize = 8 << 20

// Requester performs HTTP requests behind a RateLimiter. Requests the limiter
// denies fail immediately with ThrottledErr; nothing is queued or retried.
type Requester struct {
	name       string
	limiter    RateLimiter
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Throttled = (*Requester)(nil)

type Option func(r *Requester)

func WithHTTPClient(c *http.Client) Option {
	return func(r *Requester) {
		r.httpClient = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Requester) {
		r.logger = l
	}
}

func New(name string, limiter RateLimiter, opts ...Option) *Requester {
	r := &Requester{
		name:       name,
		limiter:    limiter,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("requester", name)
	return r
}

// NewRateLimiter builds the limiter described by cfg.
func NewRateLimiter(cfg config.ThrottleConfig) (RateLimiter, error) {
	switch cfg.Algorithm {
	case enum.TokenBucket:
		return NewTokenBucket(cfg.Capacity, cfg.RefillInterval), nil
	case enum.LeakyBucket:
		return NewLeakyBucket(cfg.Capacity, cfg.LeakRate), nil
	default:
		return nil, fmt.Errorf("unknown rate limiter algorithm: %v", cfg.Algorithm)
	}
}

// NewFromConfig builds a Requester for one source from its throttle settings.
func NewFromConfig(name string, cfg config.ThrottleConfig, opts ...Option) (*Requester, error) {
	limiter, err := NewRateLimiter(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return New(name, limiter, opts...), nil
}

func (r *Requester) Name() string {
	return r.name
}

func (r *Requester) Allow() bool {
	return r.limiter.Allow()
}

func (r *Requester) State() State {
	return r.limiter.State()
}

// PerformRequest sends req if the limiter admits it. Transport errors are
// returned as is; any HTTP status, including non-2xx, is a successful Response.
func (r *Requester) PerformRequest(ctx context.Context, req Request) (*Response, error) {
	if !r.Allow() {
		r.logger.Debug("request throttled", "url", req.URL)
		return nil, fmt.Errorf("%s: %w", r.name, ThrottledErr)
	}
	return r.do(ctx, req)
}

func (r *Requester) do(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := withQuery(req.URL, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > maxResponseBodySize {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", MalformedResponseErr, maxResponseBodySize)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       b,
	}, nil
}

func withQuery(rawURL string, query url.Values) (string, error) {
	if len(query) == 0 {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
