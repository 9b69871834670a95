package enrich

import (
	"context"

	"github.com/linkwell/linkwell/internal/aierr"
	"github.com/linkwell/linkwell/internal/taskqueue"
)

// Task types dispatched by TaskHandler.
const (
	TaskSummary  = "summary"
	TaskTags     = "tags"
	TaskCategory = "category"
	TaskSearch   = "search"
	TaskEnrich   = "enrich"
)

// TaskPayload is the payload carried by queued enrichment tasks. Fields
// beyond UserID and Bookmark are only read by the task types that need
// them.
type TaskPayload struct {
	UserID     string            `json:"user_id"`
	Bookmark   BookmarkInput     `json:"bookmark"`
	Categories []string          `json:"categories,omitempty"`
	Query      string            `json:"query,omitempty"`
	Candidates []SearchCandidate `json:"candidates,omitempty"`
}

// TaskHandler dispatches queued tasks to the orchestrator.
type TaskHandler struct {
	orch *Orchestrator
}

// NewTaskHandler creates a TaskHandler.
func NewTaskHandler(orch *Orchestrator) *TaskHandler {
	return &TaskHandler{orch: orch}
}

// Handle runs one task and returns its operation result.
func (h *TaskHandler) Handle(ctx context.Context, task *taskqueue.Task) (any, error) {
	p, ok := task.Payload.(TaskPayload)
	if !ok {
		return nil, aierr.New(aierr.CodeRequestFailed, false,
			"task %s has payload type %T, want enrich.TaskPayload", task.ID, task.Payload)
	}

	switch task.Type {
	case TaskSummary:
		return h.orch.Summarize(ctx, p.UserID, p.Bookmark)
	case TaskTags:
		return h.orch.SuggestTags(ctx, p.UserID, p.Bookmark)
	case TaskCategory:
		return h.orch.SuggestCategory(ctx, p.UserID, p.Bookmark, p.Categories)
	case TaskSearch:
		return h.orch.SemanticSearch(ctx, p.UserID, p.Query, p.Candidates)
	case TaskEnrich:
		return h.orch.EnrichNewBookmark(ctx, p.UserID, EnrichmentInput{
			Bookmark:   p.Bookmark,
			Categories: p.Categories,
		})
	default:
		return nil, aierr.New(aierr.CodeRequestFailed, false, "unknown task type %q", task.Type)
	}
}

// ValidTaskType reports whether s names a dispatchable task type.
func ValidTaskType(s string) bool {
	switch s {
	case TaskSummary, TaskTags, TaskCategory, TaskSearch, TaskEnrich:
		return true
	}
	return false
}

var _ taskqueue.Handler = (*TaskHandler)(nil)
