package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/artic-table/internal/testutil"
	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	cfg := DefaultConfig("ArticTableTest/1.0 (test@example.com)")
	cfg.BaseURL = baseURL
	cfg.Timeout = 2 * time.Second

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		errorMsg string
	}{
		{
			name:   "valid config",
			config: DefaultConfig("TestApp/1.0"),
		},
		{
			name: "empty user agent",
			config: Config{
				BaseURL: DefaultBaseURL,
				Timeout: time.Second,
			},
			errorMsg: "user-agent is required",
		},
		{
			name: "zero timeout",
			config: Config{
				BaseURL:   DefaultBaseURL,
				UserAgent: "TestApp/1.0",
			},
			errorMsg: "timeout must be positive (got 0s)",
		},
		{
			name: "relative base url",
			config: Config{
				BaseURL:   "/api/v1",
				UserAgent: "TestApp/1.0",
				Timeout:   time.Second,
			},
			errorMsg: `invalid base url "/api/v1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.config)

			if tt.errorMsg != "" {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("Client is nil")
			}
			if c.RateLimiter().Enabled() {
				t.Error("rate limiter should be disabled without redis")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("TestApp/1.0")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.UserAgent != "TestApp/1.0" {
		t.Errorf("UserAgent = %q", cfg.UserAgent)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default")
	}
}

func TestClassifyError(t *testing.T) {
	c := &Client{logger: zerolog.Nop()}

	tests := []struct {
		name       string
		statusCode int
		err        error
		expected   ErrorClass
	}{
		{"network error", 0, io.EOF, ErrorClassNetwork},
		{"client error 404", 404, nil, ErrorClassClient},
		{"client error 400", 400, nil, ErrorClassClient},
		{"too many requests", 429, nil, ErrorClassRateLimit},
		{"server error 500", 500, nil, ErrorClassServer},
		{"server error 503", 503, nil, ErrorClassServer},
		{"success 200", 200, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp *http.Response
			if tt.statusCode > 0 {
				resp = &http.Response{StatusCode: tt.statusCode}
			}

			if got := c.classifyError(resp, tt.err); got != tt.expected {
				t.Errorf("classifyError() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFetchPage_Success(t *testing.T) {
	mock := testutil.NewMockArtic(30)
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), 2, 12)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	if page.Index != 2 || page.Size != 12 {
		t.Errorf("page index/size = %d/%d, want 2/12", page.Index, page.Size)
	}
	if page.Len() != 12 {
		t.Fatalf("len(Records) = %d, want 12", page.Len())
	}
	if page.Records[0].ID != 13 || page.Records[11].ID != 24 {
		t.Errorf("record ids = %d..%d, want 13..24", page.Records[0].ID, page.Records[11].ID)
	}
	if page.Records[0].Title != "Artwork 13" {
		t.Errorf("Title = %q, want %q", page.Records[0].Title, "Artwork 13")
	}
	if page.TotalRecords != 30 {
		t.Errorf("TotalRecords = %d, want 30", page.TotalRecords)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
}

func TestFetchPage_LastPartialPage(t *testing.T) {
	mock := testutil.NewMockArtic(30)
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), 3, 12)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}
	if page.Len() != 6 {
		t.Errorf("len(Records) = %d, want 6", page.Len())
	}
}

func TestFetchPage_TotalFallsBackToPageCount(t *testing.T) {
	mock := testutil.NewMockArtic(30)
	defer mock.Close()
	mock.OmitTotal(true)

	c := newTestClient(t, mock.URL())

	page, err := c.FetchPage(context.Background(), 1, 12)
	if err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	// 3 pages * 12 overcounts the 30 real records.
	if page.TotalRecords != 36 {
		t.Errorf("TotalRecords = %d, want 36", page.TotalRecords)
	}
	if page.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", page.TotalPages)
	}
}

func TestFetchPage_RequestShape(t *testing.T) {
	mock := testutil.NewMockArtic(5)
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	if _, err := c.FetchPage(context.Background(), 1, 12); err != nil {
		t.Fatalf("FetchPage() error = %v", err)
	}

	headers := mock.LastRequestHeader()
	if got := headers.Get("User-Agent"); got != c.config.UserAgent {
		t.Errorf("User-Agent = %q, want %q", got, c.config.UserAgent)
	}
	if got := headers.Get("AIC-User-Agent"); got != c.config.UserAgent {
		t.Errorf("AIC-User-Agent = %q, want %q", got, c.config.UserAgent)
	}
	if got := headers.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q", got)
	}
	if pages := mock.RequestedPages(); len(pages) != 1 || pages[0] != 1 {
		t.Errorf("RequestedPages() = %v, want [1]", pages)
	}
}

func TestFetchPage_InvalidArguments(t *testing.T) {
	mock := testutil.NewMockArtic(5)
	defer mock.Close()

	c := newTestClient(t, mock.URL())

	tests := []struct {
		name     string
		page     int
		pageSize int
	}{
		{"page zero", 0, 12},
		{"negative page", -1, 12},
		{"zero page size", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.FetchPage(context.Background(), tt.page, tt.pageSize)
			if !errors.Is(err, artwork.ErrInvalidInput) {
				t.Errorf("FetchPage() error = %v, want ErrInvalidInput", err)
			}
		})
	}

	if n := mock.GetRequestCount(); n != 0 {
		t.Errorf("request count = %d, want 0", n)
	}
}

func TestFetchPage_Failures(t *testing.T) {
	tests := []struct {
		name      string
		response  testutil.MockResponse
		wantClass ErrorClass
		wantCode  int
	}{
		{"server error", testutil.NewServerErrorResponse(), ErrorClassServer, 500},
		{"not found", testutil.NewNotFoundResponse(), ErrorClassClient, 404},
		{"too many requests", testutil.NewTooManyRequestsResponse(), ErrorClassRateLimit, 429},
		{"malformed body", testutil.NewMalformedResponse(), ErrorClassDecode, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockArtic(24)
			defer mock.Close()
			mock.SetPageResponse(1, tt.response)

			c := newTestClient(t, mock.URL())

			_, err := c.FetchPage(context.Background(), 1, 12)
			if !errors.Is(err, artwork.ErrFetchFailed) {
				t.Fatalf("FetchPage() error = %v, want ErrFetchFailed", err)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error %T is not *APIError", err)
			}
			if apiErr.ErrorClass != tt.wantClass {
				t.Errorf("ErrorClass = %q, want %q", apiErr.ErrorClass, tt.wantClass)
			}
			if apiErr.StatusCode != tt.wantCode {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.wantCode)
			}

			// No retry: exactly one request per call.
			if n := mock.GetRequestCount(); n != 1 {
				t.Errorf("request count = %d, want 1", n)
			}
		})
	}
}

func TestFetchPage_NetworkError(t *testing.T) {
	mock := testutil.NewMockArtic(5)
	baseURL := mock.URL()
	mock.Close()

	c := newTestClient(t, baseURL)

	_, err := c.FetchPage(context.Background(), 1, 12)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.ErrorClass != ErrorClassNetwork {
		t.Fatalf("FetchPage() error = %v, want network APIError", err)
	}
	if !errors.Is(err, artwork.ErrFetchFailed) {
		t.Error("network error should match ErrFetchFailed")
	}
}

func TestFetchPage_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockArtic(24)
	defer mock.Close()
	mock.DelayPage(1, time.Second)

	c := newTestClient(t, mock.URL())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.FetchPage(ctx, 1, 12)
	if !errors.Is(err, artwork.ErrFetchFailed) {
		t.Fatalf("FetchPage() error = %v, want ErrFetchFailed", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("FetchPage() error = %v, want to wrap context.DeadlineExceeded", err)
	}
}

func TestFetchPage_ErrorMessageIncludesBody(t *testing.T) {
	mock := testutil.NewMockArtic(24)
	defer mock.Close()
	mock.FailPage(2)

	c := newTestClient(t, mock.URL())

	_, err := c.FetchPage(context.Background(), 2, 12)
	if err == nil || !strings.Contains(err.Error(), "Internal server error") {
		t.Errorf("FetchPage() error = %v, want body snippet", err)
	}
}
