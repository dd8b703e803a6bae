// Package directory resolves user ids to display names for presentation.
//
// Lookups are best effort: ranking queries must not fail or slow down
// because the user directory is unreachable, so every failure degrades to
// a missing mapping and the caller falls back to the raw id.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clouddev/leaderboard/pkg/logger"
)

// Client maps user ids to display names.
type Client interface {
	// DisplayNames returns a mapping for the ids it could resolve.
	// Missing ids are simply absent from the map; a non-nil error means
	// the directory was entirely unreachable and the map is empty.
	DisplayNames(ctx context.Context, ids []string) (map[string]string, error)
}

// Default client configuration constants.
const (
	defaultTimeout     = 500 * time.Millisecond
	defaultConcurrency = 8
)

// HTTPClient resolves display names against the user directory service,
// one profile fetch per id with bounded concurrency.
type HTTPClient struct {
	baseURL     string
	httpClient  *http.Client
	timeout     time.Duration
	concurrency int
	log         logger.Logger
}

var _ Client = (*HTTPClient)(nil)

// Option applies a configuration option to the HTTPClient.
type Option func(*HTTPClient)

// WithTimeout bounds the whole batch lookup.
func WithTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithConcurrency caps the number of in-flight profile fetches.
func WithConcurrency(n int) Option {
	return func(c *HTTPClient) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(c *HTTPClient) {
		if log != nil {
			c.log = log
		}
	}
}

// NewHTTPClient creates a directory client for the given base URL.
func NewHTTPClient(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{},
		timeout:     defaultTimeout,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// profileResponse mirrors the user directory profile payload; only the
// fields needed for enrichment are decoded.
type profileResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// DisplayNames implements Client. Individual fetch failures drop the id
// from the result; the error return is reserved for a client that was
// built without a base URL.
func (c *HTTPClient) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	if c.baseURL == "" {
		return map[string]string{}, fmt.Errorf("directory base url not configured")
	}
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		names = make(map[string]string, len(ids))
		sem   = make(chan struct{}, c.concurrency)
	)

	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			name, err := c.fetchDisplayName(ctx, id)
			if err != nil {
				if c.log != nil {
					c.log.Debug(ctx, "display name lookup failed",
						logger.String("userId", id),
						logger.Error(err),
					)
				}
				return
			}
			if name == "" {
				return
			}
			mu.Lock()
			names[id] = name
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	return names, nil
}

func (c *HTTPClient) fetchDisplayName(ctx context.Context, id string) (string, error) {
	url := c.baseURL + "/api/users/" + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var profile profileResponse
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return "", err
	}
	return profile.DisplayName, nil
}

// Noop is a Client that resolves nothing; used when enrichment is not
// configured.
type Noop struct{}

// DisplayNames implements Client with an always-empty mapping.
func (Noop) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	return map[string]string{}, nil
}
