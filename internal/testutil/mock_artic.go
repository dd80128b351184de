// Package testutil provides an in-process stand-in for the Art Institute of
// Chicago artworks API.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/Sternrassler/artic-table/pkg/artwork"
)

// APIPath is the path prefix the mock serves, mirroring the real API.
const APIPath = "/api/v1"

// MockResponse overrides the response for one page.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockArtic is a configurable mock of GET /api/v1/artworks.
type MockArtic struct {
	server *httptest.Server
	mu     sync.RWMutex

	records   []artwork.Record
	overrides map[int]MockResponse
	omitTotal bool
	headers   map[string]string

	requestCount      int
	requestedPages    []int
	lastRequestHeader http.Header
}

// NewMockArtic creates a mock serving total generated records with ids
// 1..total in dataset order.
func NewMockArtic(total int) *MockArtic {
	mock := &MockArtic{
		records:   GenerateRecords(total),
		overrides: make(map[int]MockResponse),
		headers:   make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(APIPath+"/artworks", mock.handleArtworks)
	mock.server = httptest.NewServer(mux)

	return mock
}

// GenerateRecords builds n deterministic records with ids 1..n.
func GenerateRecords(n int) []artwork.Record {
	records := make([]artwork.Record, n)
	for i := range records {
		id := int64(i + 1)
		records[i] = artwork.Record{
			ID:            id,
			Title:         fmt.Sprintf("Artwork %d", id),
			PlaceOfOrigin: "Chicago",
			ArtistDisplay: fmt.Sprintf("Artist %d", id%7),
			Inscriptions:  "",
			DateStart:     1800 + i,
			DateEnd:       1801 + i,
		}
	}
	return records
}

// URL returns the API base URL (server URL plus /api/v1).
func (m *MockArtic) URL() string {
	return m.server.URL + APIPath
}

// Close shuts down the mock server.
func (m *MockArtic) Close() {
	m.server.Close()
}

// Reset clears tracking counters and page overrides.
func (m *MockArtic) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.requestedPages = nil
	m.lastRequestHeader = nil
	m.overrides = make(map[int]MockResponse)
}

// SetRecords replaces the served dataset.
func (m *MockArtic) SetRecords(records []artwork.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]artwork.Record(nil), records...)
}

// Records returns a copy of the served dataset.
func (m *MockArtic) Records() []artwork.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]artwork.Record(nil), m.records...)
}

// SetPageResponse overrides the response for one page index.
func (m *MockArtic) SetPageResponse(page int, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[page] = resp
}

// FailPage makes the given page answer with a 500.
func (m *MockArtic) FailPage(page int) {
	m.SetPageResponse(page, NewServerErrorResponse())
}

// DelayPage delays the normal response for a page.
func (m *MockArtic) DelayPage(page int, d time.Duration) {
	m.SetPageResponse(page, MockResponse{Delay: d})
}

// OmitTotal drops pagination.total from responses, leaving only total_pages.
func (m *MockArtic) OmitTotal(omit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omitTotal = omit
}

// SetHeader sets a header sent with every response.
func (m *MockArtic) SetHeader(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headers[key] = value
}

// GetRequestCount returns the number of artworks requests served.
func (m *MockArtic) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestedPages returns the page indexes requested, in arrival order.
func (m *MockArtic) RequestedPages() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.requestedPages...)
}

// LastRequestHeader returns the headers of the latest request.
func (m *MockArtic) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

type paginationBody struct {
	Total       *int `json:"total,omitempty"`
	Limit       int  `json:"limit"`
	Offset      int  `json:"offset"`
	TotalPages  int  `json:"total_pages"`
	CurrentPage int  `json:"current_page"`
}

type artworksBody struct {
	Pagination paginationBody   `json:"pagination"`
	Data       []artwork.Record `json:"data"`
}

func (m *MockArtic) handleArtworks(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", artwork.DefaultPageSize)

	m.mu.Lock()
	m.requestCount++
	m.requestedPages = append(m.requestedPages, page)
	m.lastRequestHeader = r.Header.Clone()
	override, hasOverride := m.overrides[page]
	records := m.records
	omitTotal := m.omitTotal
	for key, value := range m.headers {
		w.Header().Set(key, value)
	}
	m.mu.Unlock()

	if hasOverride && override.Delay > 0 {
		select {
		case <-time.After(override.Delay):
		case <-r.Context().Done():
			return
		}
	}

	if hasOverride && override.StatusCode != 0 {
		for key, value := range override.Headers {
			w.Header().Set(key, value)
		}
		w.WriteHeader(override.StatusCode)
		if override.Body != "" {
			w.Write([]byte(override.Body))
		}
		return
	}

	if page < 1 || limit < 1 {
		http.Error(w, `{"status":400,"error":"Invalid page or limit"}`, http.StatusBadRequest)
		return
	}

	total := len(records)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	body := artworksBody{
		Pagination: paginationBody{
			Limit:       limit,
			Offset:      (page - 1) * limit,
			TotalPages:  artwork.TotalPages(total, limit),
			CurrentPage: page,
		},
		Data: records[start:end],
	}
	if !omitTotal {
		body.Pagination.Total = &total
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"status":500,"error":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"status":404,"error":"Not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewTooManyRequestsResponse creates a 429 response.
func NewTooManyRequestsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"status":429,"error":"Too many requests"}`,
		Headers: map[string]string{
			"Content-Type":          "application/json",
			"X-RateLimit-Remaining": "0",
			"X-RateLimit-Reset":     "60",
		},
	}
}

// NewMalformedResponse creates a 200 response with a body that is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `<html>maintenance</html>`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	}
}
