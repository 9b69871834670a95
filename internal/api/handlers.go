// Package api exposes the enrichment operations over an authenticated
// REST surface plus an MCP server for agent integrations.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkwell/linkwell/internal/content"
	"github.com/linkwell/linkwell/internal/enrich"
	"github.com/linkwell/linkwell/internal/storage"
	"github.com/linkwell/linkwell/internal/taskqueue"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Enricher is the orchestrator surface the HTTP layer depends on.
type Enricher interface {
	Summarize(ctx context.Context, userID string, in enrich.BookmarkInput) (enrich.SummaryResult, error)
	SuggestTags(ctx context.Context, userID string, in enrich.BookmarkInput) (enrich.TagsResult, error)
	SuggestCategory(ctx context.Context, userID string, in enrich.BookmarkInput, candidates []string) (enrich.CategoryResult, error)
	SemanticSearch(ctx context.Context, userID, query string, candidates []enrich.SearchCandidate) (enrich.SearchResult, error)
	EnrichNewBookmark(ctx context.Context, userID string, in enrich.EnrichmentInput) (enrich.EnrichmentResult, error)
}

// PageFetcher downloads and extracts a bookmarked page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (content.Page, error)
}

// OperationLister reads the enrichment audit log.
type OperationLister interface {
	ListOperations(userID string, limit, offset int) ([]storage.OperationLog, error)
}

type AppDeps struct {
	Enricher   Enricher
	Queue      *taskqueue.Queue
	Operations OperationLister // optional; nil disables GET /v1/operations
	Fetcher    PageFetcher     // optional; nil disables fetch_content
	Token      string
}

// NewAppHandler builds the authenticated application router. The health
// endpoint stays outside the auth middleware.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}

		r.Post("/v1/bookmarks/summarize", handleSummarize(deps))
		r.Post("/v1/bookmarks/tags", handleTags(deps))
		r.Post("/v1/bookmarks/category", handleCategory(deps))
		r.Post("/v1/bookmarks/search", handleSearch(deps))
		r.Post("/v1/enrich", handleEnrich(deps))

		r.Post("/v1/tasks", handleCreateTask(deps))
		r.Get("/v1/tasks/{id}", handleGetTask(deps))
		r.Delete("/v1/tasks", handleClearTasks(deps))

		r.Get("/v1/operations", handleListOperations(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type bookmarkRequest struct {
	UserID     string               `json:"user_id"`
	Bookmark   enrich.BookmarkInput `json:"bookmark"`
	Categories []string             `json:"categories,omitempty"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func handleSummarize(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		res, err := deps.Enricher.Summarize(r.Context(), req.UserID, req.Bookmark)
		if err != nil {
			writeAIError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

func handleTags(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		res, err := deps.Enricher.SuggestTags(r.Context(), req.UserID, req.Bookmark)
		if err != nil {
			writeAIError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

func handleCategory(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookmarkRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		res, err := deps.Enricher.SuggestCategory(r.Context(), req.UserID, req.Bookmark, req.Categories)
		if err != nil {
			writeAIError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

type searchRequest struct {
	UserID     string                   `json:"user_id"`
	Query      string                   `json:"query"`
	Candidates []enrich.SearchCandidate `json:"candidates"`
}

func handleSearch(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		if req.Query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "query is required")
			return
		}

		res, err := deps.Enricher.SemanticSearch(r.Context(), req.UserID, req.Query, req.Candidates)
		if err != nil {
			writeAIError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

type enrichRequest struct {
	UserID       string               `json:"user_id"`
	Bookmark     enrich.BookmarkInput `json:"bookmark"`
	Categories   []string             `json:"categories,omitempty"`
	FetchContent bool                 `json:"fetch_content,omitempty"`
}

func handleEnrich(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req enrichRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}

		// Optionally pull page text so enrichment has more to work with.
		// A failed fetch degrades to metadata-only enrichment.
		if req.FetchContent && req.Bookmark.Content == "" && req.Bookmark.URL != "" && deps.Fetcher != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
			page, err := deps.Fetcher.Fetch(ctx, req.Bookmark.URL)
			cancel()
			if err == nil {
				req.Bookmark.Content = page.Text
				if req.Bookmark.Title == "" {
					req.Bookmark.Title = page.Title
				}
			}
		}

		res, err := deps.Enricher.EnrichNewBookmark(r.Context(), req.UserID, enrich.EnrichmentInput{
			Bookmark:   req.Bookmark,
			Categories: req.Categories,
		})
		if err != nil {
			writeAIError(w, err)
			return
		}
		writeJSON(w, res)
	}
}

type createTaskRequest struct {
	Type     string             `json:"type"`
	Priority string             `json:"priority,omitempty"`
	Payload  enrich.TaskPayload `json:"payload"`
}

func handleCreateTask(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTaskRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if !enrich.ValidTaskType(req.Type) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown task type %q", req.Type)
			return
		}
		if req.Payload.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "payload.user_id is required")
			return
		}

		id := deps.Queue.Enqueue(taskqueue.Task{
			Type:     req.Type,
			Priority: taskqueue.ParsePriority(req.Priority),
			Payload:  req.Payload,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"id":     id,
			"status": string(taskqueue.StatePending),
		})
	}
}

// taskView is the wire shape of a task status.
type taskView struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Priority    string `json:"priority"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
	StartedAt   string `json:"started_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	Result      any    `json:"result,omitempty"`
	Error       any    `json:"error,omitempty"`
}

func handleGetTask(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		t := deps.Queue.Status(id)
		if t == nil {
			httpError(w, http.StatusNotFound, "not_found", "task not found")
			return
		}

		view := taskView{
			ID:        t.ID,
			Type:      t.Type,
			Priority:  t.Priority.String(),
			State:     string(t.State),
			CreatedAt: t.CreatedAt.Format(time.RFC3339),
			Result:    t.Result,
		}
		if !t.StartedAt.IsZero() {
			view.StartedAt = t.StartedAt.Format(time.RFC3339)
		}
		if !t.CompletedAt.IsZero() {
			view.CompletedAt = t.CompletedAt.Format(time.RFC3339)
		}
		if t.Err != nil {
			view.Error = map[string]any{
				"code":      string(t.Err.Code),
				"message":   t.Err.Message,
				"retryable": t.Err.Retryable,
			}
		}
		writeJSON(w, view)
	}
}

func handleClearTasks(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Queue.Clear()
		writeJSON(w, map[string]string{"status": "cleared"})
	}
}

func handleListOperations(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Operations == nil {
			httpError(w, http.StatusNotFound, "not_found", "operation log not enabled")
			return
		}
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_id is required")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		ops, err := deps.Operations.ListOperations(userID, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list operations: %v", err)
			return
		}
		if ops == nil {
			ops = []storage.OperationLog{}
		}
		writeJSON(w, ops)
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
