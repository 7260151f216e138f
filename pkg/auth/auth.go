// Package auth implements the OAuth2 client credentials flow with an
// expiry-aware access token cache.
package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

var AuthErr = errors.New("could not obtain access token")

// StatusError is returned when the token endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("token endpoint returned %d %s", e.Code, http.StatusText(e.Code))
}

type accessToken struct {
	value     string
	expiresAt time.Time
}

func (t accessToken) validAt(now time.Time) bool {
	return t.value != "" && now.Before(t.expiresAt)
}

// TokenCache hands out a bearer token, refreshing it only once it has expired.
// Concurrent callers share a single in-flight refresh.
type TokenCache struct {
	accessTokenURL string
	basicAuth      string
	httpClient     *http.Client
	logger         *slog.Logger
	now            func() time.Time

	mu     sync.Mutex
	cached accessToken
	group  singleflight.Group
}

type Option func(c *TokenCache)

func WithHTTPClient(client *http.Client) Option {
	return func(c *TokenCache) {
		c.httpClient = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *TokenCache) {
		c.logger = logger
	}
}

func New(accessTokenURL, consumerKey, consumerSecret string, opts ...Option) *TokenCache {
	c := &TokenCache{
		accessTokenURL: accessTokenURL,
		basicAuth:      base64.StdEncoding.EncodeToString([]byte(consumerKey + ":" + consumerSecret)),
		httpClient:     http.DefaultClient,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TokenCache) token() accessToken {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached
}

// ExpiresAt reports when the cached token expires. It is the zero time before the first refresh.
func (c *TokenCache) ExpiresAt() time.Time {
	return c.token().expiresAt
}

// AccessToken returns the cached token while it is valid, and fetches a new
// one otherwise. A failed refresh leaves the cached token untouched. The
// shared refresh outlives a cancelled caller; only that caller gives up.
func (c *TokenCache) AccessToken(ctx context.Context) (string, error) {
	if t := c.token(); t.validAt(c.now()) {
		return t.value, nil
	}

	refreshCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("token", func() (any, error) {
		// another caller may have refreshed while we waited for the group
		if t := c.token(); t.validAt(c.now()) {
			return t.value, nil
		}
		return c.refresh(refreshCtx)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   expiresIn `json:"expires_in"`
}

// expiresIn accepts both 3600 and "3600".
type expiresIn int64

func (e *expiresIn) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("expires_in: %w", err)
	}
	*e = expiresIn(n)
	return nil
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.accessTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %w", AuthErr, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+c.basicAuth)

	requestedAt := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", AuthErr, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: %w", AuthErr, &StatusError{Code: resp.StatusCode})
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %w", AuthErr, err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", AuthErr)
	}

	t := accessToken{
		value:     tr.AccessToken,
		expiresAt: requestedAt.Add(time.Duration(tr.ExpiresIn) * time.Second),
	}

	c.mu.Lock()
	c.cached = t
	c.mu.Unlock()

	c.logger.Debug("access token refreshed", "expires_at", t.expiresAt)
	return t.value, nil
}
