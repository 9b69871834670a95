package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/linkwell/linkwell/internal/aierr"
	"github.com/linkwell/linkwell/internal/completion"
	"github.com/linkwell/linkwell/internal/ratelimit"
)

// mockCompleter implements completion.Completer with a canned function
// and records every request it sees.
type mockCompleter struct {
	fn    func(req completion.Request) (completion.Result, error)
	calls []completion.Request
}

func (m *mockCompleter) Complete(_ context.Context, req completion.Request) (completion.Result, error) {
	m.calls = append(m.calls, req)
	if m.fn != nil {
		return m.fn(req)
	}
	return completion.Result{}, nil
}

func jsonResult(content string, tokens int) completion.Result {
	return completion.Result{
		Content: content,
		Usage: completion.Usage{
			PromptTokens:     tokens / 2,
			CompletionTokens: tokens - tokens/2,
			TotalTokens:      tokens,
		},
		Model: "test-model",
	}
}

// denyLimiter always denies with a fixed reset.
type denyLimiter struct{ resetIn time.Duration }

func (d denyLimiter) Check(string) ratelimit.Decision {
	return ratelimit.Decision{Allowed: false, Remaining: 0, ResetAt: time.Now().Add(d.resetIn)}
}

func allowAll() ratelimit.Limiter { return &ratelimit.Noop{} }

func newOrchestrator(m *mockCompleter) *Orchestrator {
	return New(m, allowAll(), nil, Options{})
}

var sampleBookmark = BookmarkInput{
	Title:       "Understanding Go Scheduling",
	URL:         "https://example.com/go-sched",
	Description: "A deep dive into the Go runtime scheduler.",
	Content:     "Goroutines are multiplexed onto OS threads...",
}

func TestSummarize(t *testing.T) {
	m := &mockCompleter{fn: func(req completion.Request) (completion.Result, error) {
		return jsonResult("  A deep dive into Go's scheduler.  ", 140), nil
	}}
	o := newOrchestrator(m)

	got, err := o.Summarize(context.Background(), "u1", sampleBookmark)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.Summary != "A deep dive into Go's scheduler." {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.TokensUsed != 140 {
		t.Errorf("TokensUsed = %d, want 140", got.TokensUsed)
	}
	if m.calls[0].Model != completion.ModelPrimary {
		t.Errorf("model = %q, want primary", m.calls[0].Model)
	}
}

func TestSummarize_EmptyInputNoNetworkCall(t *testing.T) {
	m := &mockCompleter{}
	o := newOrchestrator(m)

	got, err := o.Summarize(context.Background(), "u1", BookmarkInput{Title: "", Description: "", Content: ""})
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got.Summary != "" || got.TokensUsed != 0 {
		t.Errorf("got %+v, want empty summary and zero tokens", got)
	}
	if len(m.calls) != 0 {
		t.Errorf("completion called %d times, want 0", len(m.calls))
	}
}

func TestSummarize_WrapsFailure(t *testing.T) {
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return completion.Result{}, aierr.New(aierr.CodeMaxRetriesExceeded, false, "exhausted")
	}}
	o := newOrchestrator(m)

	_, err := o.Summarize(context.Background(), "u1", sampleBookmark)
	if aierr.CodeOf(err) != aierr.CodeSummaryFailed {
		t.Errorf("code = %q, want SUMMARY_FAILED", aierr.CodeOf(err))
	}
}

func TestSummarize_TimeoutPassesThrough(t *testing.T) {
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return completion.Result{}, aierr.Wrap(aierr.CodeTimeout, context.DeadlineExceeded, "abandoned")
	}}
	o := newOrchestrator(m)

	_, err := o.Summarize(context.Background(), "u1", sampleBookmark)
	if aierr.CodeOf(err) != aierr.CodeTimeout {
		t.Errorf("code = %q, want TIMEOUT", aierr.CodeOf(err))
	}
}

func TestRateLimited_FailsFastWithoutNetworkCall(t *testing.T) {
	m := &mockCompleter{}
	o := New(m, denyLimiter{resetIn: 42 * time.Second}, nil, Options{})

	_, err := o.Summarize(context.Background(), "u1", sampleBookmark)
	var e *aierr.Error
	if !errors.As(err, &e) || e.Code != aierr.CodeRateLimited {
		t.Fatalf("err = %v, want RATE_LIMITED", err)
	}
	if !e.Retryable {
		t.Error("rate limit error must be retryable")
	}
	if e.RetryAfter <= 0 || e.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want ~42s", e.RetryAfter)
	}
	if len(m.calls) != 0 {
		t.Error("completion attempted despite rate limit")
	}
}

func TestSuggestTags_ParsesStructuredResponse(t *testing.T) {
	m := &mockCompleter{fn: func(req completion.Request) (completion.Result, error) {
		if req.Format != completion.FormatJSON {
			t.Errorf("format = %q, want json", req.Format)
		}
		return jsonResult(`{"tags":["Go","Scheduling","runtime","go"],"reasoning":"runtime internals"}`, 80), nil
	}}
	o := newOrchestrator(m)

	got, err := o.SuggestTags(context.Background(), "u1", sampleBookmark)
	if err != nil {
		t.Fatalf("SuggestTags: %v", err)
	}
	want := []string{"go", "scheduling", "runtime"}
	if len(got.Tags) != len(want) {
		t.Fatalf("tags = %v, want %v", got.Tags, want)
	}
	for i := range want {
		if got.Tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, got.Tags[i], want[i])
		}
	}
	if got.Reasoning != "runtime internals" {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
}

func TestSuggestTags_FallbackOnMalformedJSON(t *testing.T) {
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return jsonResult("Tags: golang, concurrency, scheduler, golang, performance, runtime, extras", 60), nil
	}}
	o := newOrchestrator(m)

	got, err := o.SuggestTags(context.Background(), "u1", sampleBookmark)
	if err != nil {
		t.Fatalf("SuggestTags: %v", err)
	}
	if len(got.Tags) == 0 || len(got.Tags) > 5 {
		t.Fatalf("fallback produced %d tags: %v", len(got.Tags), got.Tags)
	}
	seen := map[string]bool{}
	for _, tag := range got.Tags {
		if tag == "" || tag != strings.ToLower(tag) {
			t.Errorf("bad tag %q", tag)
		}
		if seen[tag] {
			t.Errorf("duplicate tag %q", tag)
		}
		seen[tag] = true
	}
}

func TestSuggestCategory_EmptyCandidates(t *testing.T) {
	m := &mockCompleter{}
	o := newOrchestrator(m)

	got, err := o.SuggestCategory(context.Background(), "u1", sampleBookmark, nil)
	if err != nil {
		t.Fatalf("SuggestCategory: %v", err)
	}
	if got.Category != "Other" || got.Confidence != 0 || got.TokensUsed != 0 {
		t.Errorf("got %+v, want {Other 0 0}", got)
	}
	if len(m.calls) != 0 {
		t.Error("completion called despite empty candidate list")
	}
}

func TestSuggestCategory_CaseInsensitiveMatch(t *testing.T) {
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return jsonResult(`{"category":"development","confidence":0.9,"reasoning":"code-heavy"}`, 50), nil
	}}
	o := newOrchestrator(m)

	got, err := o.SuggestCategory(context.Background(), "u1", sampleBookmark, []string{"Development", "News"})
	if err != nil {
		t.Fatalf("SuggestCategory: %v", err)
	}
	if got.Category != "Development" {
		t.Errorf("category = %q, want candidate-list casing", got.Category)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v", got.Confidence)
	}
}

func TestSuggestCategory_UnknownAnswerFallsBackToFirstCandidate(t *testing.T) {
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return jsonResult(`{"category":"Cooking","confidence":0.8}`, 50), nil
	}}
	o := newOrchestrator(m)

	got, err := o.SuggestCategory(context.Background(), "u1", sampleBookmark, []string{"Development", "News"})
	if err != nil {
		t.Fatalf("SuggestCategory: %v", err)
	}
	if got.Category != "Development" {
		t.Errorf("category = %q, want first candidate", got.Category)
	}
	if got.Confidence != 0.4 {
		t.Errorf("confidence = %v, want halved 0.4", got.Confidence)
	}
}

func TestSuggestCategory_ConfidenceClamped(t *testing.T) {
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return jsonResult(`{"category":"News","confidence":3.7}`, 50), nil
	}}
	o := newOrchestrator(m)

	got, err := o.SuggestCategory(context.Background(), "u1", sampleBookmark, []string{"News"})
	if err != nil {
		t.Fatalf("SuggestCategory: %v", err)
	}
	if got.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", got.Confidence)
	}
}

func TestSemanticSearch_FiltersAndSorts(t *testing.T) {
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return jsonResult(`{
			"interpretation": "posts about go concurrency",
			"results": [
				{"id": "bm-2", "score": 0.6, "reason": "scheduler"},
				{"id": "ghost", "score": 0.99},
				{"id": "bm-1", "score": 0.95, "reason": "goroutines"},
				{"id": "bm-3", "score": 0.2},
				{"id": "bm-4", "score": 1.8}
			]}`, 200), nil
	}}
	o := newOrchestrator(m)

	candidates := []SearchCandidate{
		{ID: "bm-1", Title: "Goroutines"},
		{ID: "bm-2", Title: "Scheduler"},
		{ID: "bm-3", Title: "Unrelated"},
		{ID: "bm-4", Title: "Channels"},
	}
	got, err := o.SemanticSearch(context.Background(), "u1", "go concurrency", candidates)
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}

	wantIDs := []string{"bm-4", "bm-1", "bm-2"}
	if len(got.Results) != len(wantIDs) {
		t.Fatalf("results = %+v, want ids %v", got.Results, wantIDs)
	}
	for i, id := range wantIDs {
		if got.Results[i].ID != id {
			t.Errorf("results[%d].ID = %q, want %q", i, got.Results[i].ID, id)
		}
	}
	// bm-4's 1.8 clamps to 1; scores stay in (0.3, 1] and descend.
	prev := 1.1
	for _, r := range got.Results {
		if r.Score <= minSearchScore || r.Score > 1 {
			t.Errorf("score %v outside (0.3, 1]", r.Score)
		}
		if r.Score > prev {
			t.Error("results not sorted by score descending")
		}
		prev = r.Score
	}
	if got.Interpretation != "posts about go concurrency" {
		t.Errorf("interpretation = %q", got.Interpretation)
	}
}

func TestSemanticSearch_CapsCandidates(t *testing.T) {
	m := &mockCompleter{fn: func(req completion.Request) (completion.Result, error) {
		if strings.Contains(req.UserMessage, "id=bm-25") {
			t.Error("candidate beyond the cap reached the prompt")
		}
		return jsonResult(`{"results":[]}`, 10), nil
	}}
	o := newOrchestrator(m)

	var candidates []SearchCandidate
	for i := 1; i <= 30; i++ {
		candidates = append(candidates, SearchCandidate{ID: fmt.Sprintf("bm-%d", i)})
	}
	if _, err := o.SemanticSearch(context.Background(), "u1", "q", candidates); err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
}

func TestSemanticSearch_EmptyCandidates(t *testing.T) {
	m := &mockCompleter{}
	o := newOrchestrator(m)

	got, err := o.SemanticSearch(context.Background(), "u1", "query", nil)
	if err != nil {
		t.Fatalf("SemanticSearch: %v", err)
	}
	if len(got.Results) != 0 || got.TokensUsed != 0 || len(m.calls) != 0 {
		t.Errorf("empty candidate search did work: %+v, %d calls", got, len(m.calls))
	}
}

func TestEnrichNewBookmark_PartialFailure(t *testing.T) {
	// Summary and category succeed, tag suggestion blows up.
	m := &mockCompleter{fn: func(req completion.Request) (completion.Result, error) {
		switch {
		case req.Format == completion.FormatJSON && strings.Contains(req.SystemPrompt, "tags"):
			return completion.Result{}, aierr.New(aierr.CodeMaxRetriesExceeded, false, "exhausted")
		case req.Format == completion.FormatJSON:
			return jsonResult(`{"category":"Development","confidence":0.8}`, 40), nil
		default:
			return jsonResult("A summary.", 100), nil
		}
	}}
	o := newOrchestrator(m)

	got, err := o.EnrichNewBookmark(context.Background(), "u1", EnrichmentInput{
		Bookmark:   sampleBookmark,
		Categories: []string{"Development", "News"},
	})
	if err != nil {
		t.Fatalf("composite call failed on a sub-operation error: %v", err)
	}
	if got.Summary != "A summary." {
		t.Errorf("summary = %q", got.Summary)
	}
	if got.SuggestedTags != nil {
		t.Errorf("tags = %v, want none after failure", got.SuggestedTags)
	}
	if got.SuggestedCategory != "Development" {
		t.Errorf("category = %q", got.SuggestedCategory)
	}
	if got.TokensUsed != 140 {
		t.Errorf("tokens = %d, want 140 (sum of successes)", got.TokensUsed)
	}
}

func TestEnrichNewBookmark_LowConfidenceCategoryOmitted(t *testing.T) {
	m := &mockCompleter{fn: func(req completion.Request) (completion.Result, error) {
		switch {
		case req.Format == completion.FormatJSON && strings.Contains(req.SystemPrompt, "tags"):
			return jsonResult(`{"tags":["go"]}`, 30), nil
		case req.Format == completion.FormatJSON:
			return jsonResult(`{"category":"Development","confidence":0.4}`, 40), nil
		default:
			return jsonResult("A summary.", 100), nil
		}
	}}
	o := newOrchestrator(m)

	got, err := o.EnrichNewBookmark(context.Background(), "u1", EnrichmentInput{
		Bookmark:   sampleBookmark,
		Categories: []string{"Development"},
	})
	if err != nil {
		t.Fatalf("EnrichNewBookmark: %v", err)
	}
	if got.SuggestedCategory != "" {
		t.Errorf("category = %q, want omitted below confidence 0.5", got.SuggestedCategory)
	}
	// Tokens still counted for the category attempt.
	if got.TokensUsed != 170 {
		t.Errorf("tokens = %d, want 170", got.TokensUsed)
	}
}

func TestEnrichNewBookmark_FixedSubOperationOrder(t *testing.T) {
	var order []string
	m := &mockCompleter{fn: func(req completion.Request) (completion.Result, error) {
		switch {
		case req.Format == completion.FormatJSON && strings.Contains(req.SystemPrompt, "tags"):
			order = append(order, "tags")
			return jsonResult(`{"tags":["go"]}`, 1), nil
		case req.Format == completion.FormatJSON:
			order = append(order, "category")
			return jsonResult(`{"category":"News","confidence":0.9}`, 1), nil
		default:
			order = append(order, "summary")
			return jsonResult("s", 1), nil
		}
	}}
	o := newOrchestrator(m)

	if _, err := o.EnrichNewBookmark(context.Background(), "u1", EnrichmentInput{
		Bookmark:   sampleBookmark,
		Categories: []string{"News"},
	}); err != nil {
		t.Fatalf("EnrichNewBookmark: %v", err)
	}

	want := []string{"summary", "tags", "category"}
	if len(order) != 3 {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("sub-operation %d = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestEnrichNewBookmark_RateLimitedFailsFast(t *testing.T) {
	m := &mockCompleter{}
	o := New(m, denyLimiter{resetIn: 10 * time.Second}, nil, Options{})

	_, err := o.EnrichNewBookmark(context.Background(), "u1", EnrichmentInput{Bookmark: sampleBookmark})
	if aierr.CodeOf(err) != aierr.CodeRateLimited {
		t.Errorf("code = %q, want RATE_LIMITED", aierr.CodeOf(err))
	}
	if len(m.calls) != 0 {
		t.Error("completion attempted despite rate limit")
	}
}

// recordingRecorder captures audit records.
type recordingRecorder struct{ recs []OperationRecord }

func (r *recordingRecorder) RecordOperation(rec OperationRecord) { r.recs = append(r.recs, rec) }

func TestRecorder_ReceivesOutcomes(t *testing.T) {
	rec := &recordingRecorder{}
	m := &mockCompleter{fn: func(completion.Request) (completion.Result, error) {
		return completion.Result{}, aierr.New(aierr.CodeMaxRetriesExceeded, false, "exhausted")
	}}
	o := New(m, allowAll(), rec, Options{})

	o.Summarize(context.Background(), "u1", sampleBookmark)

	if len(rec.recs) != 1 {
		t.Fatalf("recorded %d operations, want 1", len(rec.recs))
	}
	got := rec.recs[0]
	if got.Operation != "summary" || got.Status != "failed" || got.ErrorCode != string(aierr.CodeSummaryFailed) {
		t.Errorf("record = %+v", got)
	}
}
