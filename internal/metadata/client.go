// Package metadata resolves series information from a TVMaze-compatible API,
// with rate limiting, retries, and a database-backed cache.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/seriarr/seriarr/internal/config"
	"github.com/seriarr/seriarr/internal/models"
)

// ErrNotFound is returned when the API has no series matching the query.
var ErrNotFound = errors.New("series not found")

// Lookuper resolves a series query to its metadata.
type Lookuper interface {
	Search(ctx context.Context, query string) (*models.SeriesInfo, error)
}

// Client talks to a TVMaze-compatible API. Requests are rate limited and
// transient failures are retried with linear backoff.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	limiter       *rate.Limiter
	retryAttempts int
	retryDelay    time.Duration
	logger        *slog.Logger
}

// NewClient creates an API client from configuration.
func NewClient(cfg config.MetadataConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	perSecond := cfg.RatePerSecond
	if perSecond < 1 {
		perSecond = 1
	}
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    &http.Client{Timeout: cfg.HTTPTimeout},
		limiter:       rate.NewLimiter(rate.Limit(perSecond), perSecond),
		retryAttempts: attempts,
		retryDelay:    cfg.RetryDelay,
		logger:        logger.With(slog.String("component", "metadata")),
	}
}

// showResponse mirrors the TVMaze single-search payload.
type showResponse struct {
	Name      string `json:"name"`
	Premiered string `json:"premiered"`
	Summary   string `json:"summary"`
	Network   *struct {
		Name string `json:"name"`
	} `json:"network"`
	WebChannel *struct {
		Name string `json:"name"`
	} `json:"webChannel"`
	Rating struct {
		Average *float64 `json:"average"`
	} `json:"rating"`
}

var htmlTags = regexp.MustCompile(`<[^>]*>`)

// Search resolves a query to series metadata. A miss returns ErrNotFound;
// server errors and network faults are retried before giving up.
func (c *Client) Search(ctx context.Context, query string) (*models.SeriesInfo, error) {
	endpoint := fmt.Sprintf("%s/singlesearch/shows?q=%s", c.baseURL, url.QueryEscape(query))

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}

		info, retry, err := c.doSearch(ctx, endpoint)
		if err == nil {
			return info, nil
		}
		if !retry {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("metadata lookup failed, retrying",
			slog.String("query", query),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))

		if attempt < c.retryAttempts {
			select {
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("looking up %q after %d attempts: %w", query, c.retryAttempts, lastErr)
}

// doSearch performs a single request. The retry flag marks transient faults.
func (c *Client) doSearch(ctx context.Context, endpoint string) (*models.SeriesInfo, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return nil, true, fmt.Errorf("server returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, false, fmt.Errorf("server returned %s", resp.Status)
	}

	var show showResponse
	if err := json.NewDecoder(resp.Body).Decode(&show); err != nil {
		return nil, false, fmt.Errorf("decoding response: %w", err)
	}
	return show.toInfo(), false, nil
}

func (r *showResponse) toInfo() *models.SeriesInfo {
	info := &models.SeriesInfo{
		Name:     r.Name,
		Overview: strings.TrimSpace(htmlTags.ReplaceAllString(r.Summary, "")),
	}
	if len(r.Premiered) >= 4 {
		if y, err := strconv.Atoi(r.Premiered[:4]); err == nil {
			info.Year = y
		}
	}
	if r.Network != nil {
		info.Network = r.Network.Name
	} else if r.WebChannel != nil {
		info.Network = r.WebChannel.Name
	}
	if r.Rating.Average != nil {
		info.Rating = *r.Rating.Average
	}
	return info
}
