package enrich

import (
	"context"
	"testing"

	"github.com/linkwell/linkwell/internal/aierr"
	"github.com/linkwell/linkwell/internal/completion"
	"github.com/linkwell/linkwell/internal/taskqueue"
)

func TestTaskHandler_DispatchesByType(t *testing.T) {
	m := &mockCompleter{fn: func(req completion.Request) (completion.Result, error) {
		if req.Format == completion.FormatJSON {
			return jsonResult(`{"tags":["go"],"category":"News","confidence":0.9,"results":[]}`, 10), nil
		}
		return jsonResult("a summary", 10), nil
	}}
	h := NewTaskHandler(newOrchestrator(m))

	payload := TaskPayload{
		UserID:     "u1",
		Bookmark:   sampleBookmark,
		Categories: []string{"News"},
		Query:      "query",
		Candidates: []SearchCandidate{{ID: "bm-1", Title: "t"}},
	}

	tests := []struct {
		typ   string
		check func(t *testing.T, res any)
	}{
		{TaskSummary, func(t *testing.T, res any) {
			if r, ok := res.(SummaryResult); !ok || r.Summary != "a summary" {
				t.Errorf("result = %#v", res)
			}
		}},
		{TaskTags, func(t *testing.T, res any) {
			if r, ok := res.(TagsResult); !ok || len(r.Tags) == 0 {
				t.Errorf("result = %#v", res)
			}
		}},
		{TaskCategory, func(t *testing.T, res any) {
			if r, ok := res.(CategoryResult); !ok || r.Category != "News" {
				t.Errorf("result = %#v", res)
			}
		}},
		{TaskSearch, func(t *testing.T, res any) {
			if _, ok := res.(SearchResult); !ok {
				t.Errorf("result = %#v", res)
			}
		}},
		{TaskEnrich, func(t *testing.T, res any) {
			if r, ok := res.(EnrichmentResult); !ok || r.Summary != "a summary" {
				t.Errorf("result = %#v", res)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			res, err := h.Handle(context.Background(), &taskqueue.Task{ID: "t1", Type: tt.typ, Payload: payload})
			if err != nil {
				t.Fatalf("Handle(%s): %v", tt.typ, err)
			}
			tt.check(t, res)
		})
	}
}

func TestTaskHandler_RejectsBadInput(t *testing.T) {
	h := NewTaskHandler(newOrchestrator(&mockCompleter{}))

	_, err := h.Handle(context.Background(), &taskqueue.Task{ID: "t1", Type: TaskSummary, Payload: "not a payload"})
	if aierr.CodeOf(err) != aierr.CodeRequestFailed {
		t.Errorf("bad payload: code = %q, want REQUEST_FAILED", aierr.CodeOf(err))
	}

	_, err = h.Handle(context.Background(), &taskqueue.Task{ID: "t2", Type: "reticulate", Payload: TaskPayload{UserID: "u1"}})
	if aierr.CodeOf(err) != aierr.CodeRequestFailed {
		t.Errorf("unknown type: code = %q, want REQUEST_FAILED", aierr.CodeOf(err))
	}
}

func TestValidTaskType(t *testing.T) {
	for _, typ := range []string{TaskSummary, TaskTags, TaskCategory, TaskSearch, TaskEnrich} {
		if !ValidTaskType(typ) {
			t.Errorf("ValidTaskType(%q) = false", typ)
		}
	}
	if ValidTaskType("reticulate") {
		t.Error("ValidTaskType accepted an unknown type")
	}
}
