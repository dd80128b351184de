// Package client fetches pages of the Art Institute of Chicago artworks
// collection. It is the remote page fetcher behind the table view: one
// request per call, no retries, failures classified and reported as
// artwork.ErrFetchFailed.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for fetch operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artic_requests_total",
		Help: "Total artworks API requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "artic_request_duration_seconds",
		Help:    "Artworks API request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artic_fetch_errors_total",
		Help: "Total failed page fetches by error class",
	}, []string{"class"})
)

// DefaultBaseURL is the public artworks API.
const DefaultBaseURL = "https://api.artic.edu/api/v1"

// recordFields limits the response to the columns the table shows.
var recordFields = strings.Join([]string{
	"id", "title", "place_of_origin", "artist_display",
	"inscriptions", "date_start", "date_end",
}, ",")

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

// Client fetches artwork pages.
type Client struct {
	httpClient  *http.Client
	rateLimiter *ratelimit.Tracker
	baseURL     string
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the API, without trailing slash.
	BaseURL string

	// UserAgent identifies the application to the upstream, which asks
	// clients for "AppName (contact)".
	UserAgent string

	// Timeout per request.
	Timeout time.Duration

	// Redis shares rate limit state between processes. Optional.
	Redis *redis.Client
}

// DefaultConfig returns a configuration for the public API.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   15 * time.Second,
	}
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	logger := logging.NewLogger(logging.ComponentClient)

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logging.NewLogger(logging.ComponentRateLimit)),
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		config:      cfg,
		logger:      logger,
	}, nil
}

type artworksResponse struct {
	Pagination struct {
		Total       int `json:"total"`
		Limit       int `json:"limit"`
		TotalPages  int `json:"total_pages"`
		CurrentPage int `json:"current_page"`
	} `json:"pagination"`
	Data []artwork.Record `json:"data"`
}

// FetchPage retrieves one page of artworks. pageIndex is 1-based.
func (c *Client) FetchPage(ctx context.Context, pageIndex, pageSize int) (artwork.Page, error) {
	if pageIndex < 1 {
		return artwork.Page{}, fmt.Errorf("%w: page index must be >= 1 (got %d)", artwork.ErrInvalidInput, pageIndex)
	}
	if pageSize <= 0 {
		return artwork.Page{}, fmt.Errorf("%w: page size must be > 0 (got %d)", artwork.ErrInvalidInput, pageSize)
	}

	query := url.Values{}
	query.Set("page", strconv.Itoa(pageIndex))
	query.Set("limit", strconv.Itoa(pageSize))
	query.Set("fields", recordFields)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/artworks?"+query.Encode(), nil)
	if err != nil {
		return artwork.Page{}, &APIError{Page: pageIndex, ErrorClass: ErrorClassNetwork, Message: "create request", Err: err}
	}

	resp, err := c.do(req, pageIndex)
	if err != nil {
		return artwork.Page{}, err
	}
	defer resp.Body.Close()

	var body artworksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return artwork.Page{}, c.fail(&APIError{
			Page:       pageIndex,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode artworks response",
			Err:        err,
		})
	}

	total := body.Pagination.Total
	if total <= 0 {
		// Older responses carry only total_pages.
		total = body.Pagination.TotalPages * pageSize
	}

	page := artwork.Page{
		Index:        pageIndex,
		Size:         pageSize,
		Records:      body.Data,
		TotalRecords: total,
		TotalPages:   artwork.TotalPages(total, pageSize),
	}

	c.logger.Debug().
		Int("page", pageIndex).
		Int("records", len(page.Records)).
		Int("total_records", page.TotalRecords).
		Msg("Fetched artworks page")

	return page, nil
}

// do executes a request with rate limit gating. Non-2xx responses are
// returned as *APIError with the body closed.
func (c *Client) do(req *http.Request, pageIndex int) (*http.Response, error) {
	ctx := req.Context()

	startTime := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(startTime).Seconds())
	}()

	if err := c.rateLimiter.Wait(ctx); err != nil {
		requestsTotal.WithLabelValues("rate_limited").Inc()
		class := ErrorClassRateLimit
		if !errors.Is(err, ratelimit.ErrBlocked) {
			class = ErrorClassNetwork
		}
		return nil, c.fail(&APIError{Page: pageIndex, ErrorClass: class, Message: "request not sent", Err: err})
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("AIC-User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Int("page", pageIndex).
		Str("url", req.URL.String()).
		Msg("Executing artworks request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&APIError{
			Page:       pageIndex,
			ErrorClass: c.classifyError(nil, err),
			Message:    "http request failed",
			Err:        err,
		})
	}

	if err := c.rateLimiter.UpdateFromHeaders(ctx, resp.Header); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
	}

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, c.fail(&APIError{
			Page:       pageIndex,
			StatusCode: resp.StatusCode,
			ErrorClass: c.classifyError(resp, nil),
			Message:    strings.TrimSpace(resp.Status + " " + string(snippet)),
		})
	}

	return resp, nil
}

// fail records and logs a fetch error.
func (c *Client) fail(err *APIError) *APIError {
	fetchErrorsTotal.WithLabelValues(string(err.ErrorClass)).Inc()
	c.logger.Warn().
		Int("page", err.Page).
		Int("status", err.StatusCode).
		Str("error_class", string(err.ErrorClass)).
		Err(err.Err).
		Msg("Artworks fetch failed")
	return err
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// RateLimiter returns the rate limit tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}
