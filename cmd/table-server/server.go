package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/Sternrassler/artic-table/pkg/artwork"
	"github.com/Sternrassler/artic-table/pkg/logging"
	"github.com/Sternrassler/artic-table/pkg/metrics"
	"github.com/Sternrassler/artic-table/pkg/pagination"
	"github.com/Sternrassler/artic-table/pkg/view"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// server exposes one shared table view over HTTP.
type server struct {
	view    *view.View
	redis   *redis.Client
	timeout time.Duration
	logger  zerolog.Logger
}

func newServer(v *view.View, redisClient *redis.Client, timeout time.Duration) *server {
	return &server{
		view:    v,
		redis:   redisClient,
		timeout: timeout,
		logger:  logging.NewLogger(logging.ComponentServer),
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(s.redis))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /state", s.handleState)
	mux.HandleFunc("POST /page", s.handlePage)
	mux.HandleFunc("POST /rows/{id}/toggle", s.handleToggle)
	mux.HandleFunc("POST /bulk", s.handleBulk)
	mux.HandleFunc("GET /selection", s.handleSelection)
	mux.HandleFunc("DELETE /selection", s.handleClearSelection)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports whether the rate limit store answers. Without Redis
// the server is always ready.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := redisClient.Ping(ctx).Err(); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

type stateResponse struct {
	Rows          []artwork.Record `json:"rows"`
	TotalRecords  int              `json:"total_records"`
	FirstIndex    int              `json:"first_index"`
	CurrentPage   int              `json:"current_page"`
	TotalPages    int              `json:"total_pages"`
	PageSize      int              `json:"page_size"`
	Loading       bool             `json:"loading"`
	BulkBusy      bool             `json:"bulk_busy"`
	SelectedIDs   []int64          `json:"selected_ids"`
	SelectedCount int              `json:"selected_count"`
	LastError     string           `json:"last_error,omitempty"`
}

func newStateResponse(st view.State) stateResponse {
	ids := make([]int64, 0, len(st.SelectedIDs))
	for id := range st.SelectedIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows := st.Rows
	if rows == nil {
		rows = []artwork.Record{}
	}

	resp := stateResponse{
		Rows:          rows,
		TotalRecords:  st.TotalRecords,
		FirstIndex:    st.CurrentFirstIndex,
		CurrentPage:   st.CurrentPage,
		TotalPages:    st.TotalPages,
		PageSize:      st.PageSize,
		Loading:       st.Loading,
		BulkBusy:      st.BulkBusy,
		SelectedIDs:   ids,
		SelectedCount: st.SelectedCount,
	}
	if st.LastErr != nil {
		resp.LastError = st.LastErr.Error()
	}
	return resp
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(s.view.State()))
}

func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	first, err := strconv.Atoi(r.URL.Query().Get("first"))
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: first must be an integer", artwork.ErrInvalidInput))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	if err := s.view.OnPageChange(ctx, first); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s.view.State()))
}

func (s *server) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: id must be an integer", artwork.ErrInvalidInput))
		return
	}

	selected, err := s.view.OnRowToggle(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "selected": selected})
}

type bulkRequest struct {
	Count string `json:"count"`
}

func (s *server) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, fmt.Errorf("%w: body must be {\"count\": \"<n>\"}", artwork.ErrInvalidInput))
		return
	}

	// The bulk walk gets one page timeout per page inside the view.
	if err := s.view.ConfirmDialog(r.Context(), req.Count); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newStateResponse(s.view.State()))
}

func (s *server) handleSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Selected())
}

func (s *server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	s.view.ClearSelection()
	w.WriteHeader(http.StatusNoContent)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, artwork.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, view.ErrUnknownRecord):
		return http.StatusNotFound
	case errors.Is(err, view.ErrBusy), errors.Is(err, pagination.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, artwork.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Err(err).Int("status_code", status).Msg("Request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
