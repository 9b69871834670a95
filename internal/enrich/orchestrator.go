// Package enrich composes the completion client, rate limiter, and
// prompt builders into the AI operations offered to the bookmark
// application: summarize, suggest tags, suggest category, semantic
// search, and the combined new-bookmark enrichment.
package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/linkwell/linkwell/internal/aierr"
	"github.com/linkwell/linkwell/internal/completion"
	"github.com/linkwell/linkwell/internal/prompt"
	"github.com/linkwell/linkwell/internal/ratelimit"
)

// Options tune the orchestrator. Zero values fall back to defaults.
type Options struct {
	SummaryMaxTokens    int
	TagsMaxTokens       int
	CategoryMaxTokens   int
	SearchMaxTokens     int
	Temperature         float64
	DefaultCategory     string
	MaxSearchCandidates int
}

func (o Options) withDefaults() Options {
	if o.SummaryMaxTokens <= 0 {
		o.SummaryMaxTokens = 256
	}
	if o.TagsMaxTokens <= 0 {
		o.TagsMaxTokens = 200
	}
	if o.CategoryMaxTokens <= 0 {
		o.CategoryMaxTokens = 150
	}
	if o.SearchMaxTokens <= 0 {
		o.SearchMaxTokens = 600
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.3
	}
	if o.DefaultCategory == "" {
		o.DefaultCategory = "Other"
	}
	if o.MaxSearchCandidates <= 0 {
		o.MaxSearchCandidates = 20
	}
	return o
}

// minCategoryConfidence gates whether the composite workflow includes a
// category suggestion at all.
const minCategoryConfidence = 0.5

// Orchestrator implements the enrichment operations. Safe for
// concurrent use; the only shared state lives in the limiter.
type Orchestrator struct {
	completer completion.Completer
	limiter   ratelimit.Limiter
	recorder  Recorder // optional
	opts      Options
}

// New creates an Orchestrator. recorder may be nil to disable auditing.
func New(completer completion.Completer, limiter ratelimit.Limiter, recorder Recorder, opts Options) *Orchestrator {
	return &Orchestrator{
		completer: completer,
		limiter:   limiter,
		recorder:  recorder,
		opts:      opts.withDefaults(),
	}
}

// allow consumes one unit of the user's quota, failing fast with the
// computed wait time when none remains.
func (o *Orchestrator) allow(userID string) error {
	d := o.limiter.Check(userID)
	if d.Allowed {
		return nil
	}
	wait := time.Until(d.ResetAt)
	if wait < 0 {
		wait = 0
	}
	return aierr.RateLimited(wait)
}

// Summarize produces a short summary of the bookmark. A bookmark with
// no meaningful text yields an empty summary and no completion call —
// that is a result, not an error.
func (o *Orchestrator) Summarize(ctx context.Context, userID string, in BookmarkInput) (SummaryResult, error) {
	if err := o.allow(userID); err != nil {
		return SummaryResult{}, err
	}
	if !in.hasText() {
		o.record(userID, "summary", 0, "", nil)
		return SummaryResult{}, nil
	}

	system, user := prompt.Summary(bookmarkPrompt(in))
	res, err := o.completer.Complete(ctx, completion.Request{
		SystemPrompt: system,
		UserMessage:  user,
		Model:        completion.ModelPrimary,
		MaxTokens:    o.opts.SummaryMaxTokens,
		Temperature:  o.opts.Temperature,
	})
	if err != nil {
		wrapped := wrapOp(aierr.CodeSummaryFailed, err, "summarizing bookmark")
		o.record(userID, "summary", 0, "", wrapped)
		return SummaryResult{}, wrapped
	}

	o.record(userID, "summary", res.Usage.TotalTokens, res.Model, nil)
	return SummaryResult{
		Summary:    trimmed(res.Content),
		TokensUsed: res.Usage.TotalTokens,
	}, nil
}

// tagsResponse is the structured output requested from the model.
type tagsResponse struct {
	Tags      []string `json:"tags"`
	Reasoning string   `json:"reasoning"`
}

// SuggestTags proposes up to five lowercase tags. A malformed structured
// response degrades to heuristic extraction from the raw text instead of
// failing the call.
func (o *Orchestrator) SuggestTags(ctx context.Context, userID string, in BookmarkInput) (TagsResult, error) {
	if err := o.allow(userID); err != nil {
		return TagsResult{}, err
	}

	system, user := prompt.Tags(bookmarkPrompt(in))
	res, err := o.completer.Complete(ctx, completion.Request{
		SystemPrompt: system,
		UserMessage:  user,
		Model:        completion.ModelFast,
		MaxTokens:    o.opts.TagsMaxTokens,
		Temperature:  o.opts.Temperature,
		Format:       completion.FormatJSON,
	})
	if err != nil {
		wrapped := wrapOp(aierr.CodeTagsFailed, err, "suggesting tags")
		o.record(userID, "tags", 0, "", wrapped)
		return TagsResult{}, wrapped
	}

	out := TagsResult{TokensUsed: res.Usage.TotalTokens}
	var parsed tagsResponse
	if raw, ok := extractJSON(res.Content); ok && json.Unmarshal([]byte(raw), &parsed) == nil && len(parsed.Tags) > 0 {
		out.Tags = normalizeTags(parsed.Tags)
		out.Reasoning = trimmed(parsed.Reasoning)
	} else {
		slog.Warn("tag response not parseable, using heuristic extraction", "user", userID)
		out.Tags = heuristicTags(res.Content)
	}

	o.record(userID, "tags", res.Usage.TotalTokens, res.Model, nil)
	return out, nil
}

// categoryResponse is the structured output requested from the model.
type categoryResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// SuggestCategory picks one of the caller's candidate categories. An
// empty candidate list short-circuits to the default category with zero
// confidence and no completion call. The returned category is always
// from the candidate list: an answer matching none of them falls back
// to the first candidate at half the reported confidence.
func (o *Orchestrator) SuggestCategory(ctx context.Context, userID string, in BookmarkInput, candidates []string) (CategoryResult, error) {
	if err := o.allow(userID); err != nil {
		return CategoryResult{}, err
	}
	if len(candidates) == 0 {
		o.record(userID, "category", 0, "", nil)
		return CategoryResult{Category: o.opts.DefaultCategory, Confidence: 0}, nil
	}

	system, user := prompt.Category(bookmarkPrompt(in), candidates)
	res, err := o.completer.Complete(ctx, completion.Request{
		SystemPrompt: system,
		UserMessage:  user,
		Model:        completion.ModelFast,
		MaxTokens:    o.opts.CategoryMaxTokens,
		Temperature:  o.opts.Temperature,
		Format:       completion.FormatJSON,
	})
	if err != nil {
		wrapped := wrapOp(aierr.CodeCategoryFailed, err, "suggesting category")
		o.record(userID, "category", 0, "", wrapped)
		return CategoryResult{}, wrapped
	}

	// A response that fails structured parsing may still be a bare
	// category name; match it like any other answer.
	var parsed categoryResponse
	raw, ok := extractJSON(res.Content)
	if !ok || json.Unmarshal([]byte(raw), &parsed) != nil {
		parsed = categoryResponse{Category: trimmed(res.Content), Confidence: 0.5}
	}

	out := CategoryResult{
		Reasoning:  trimmed(parsed.Reasoning),
		TokensUsed: res.Usage.TotalTokens,
	}
	if match, ok := matchCategory(parsed.Category, candidates); ok {
		out.Category = match
		out.Confidence = clamp01(parsed.Confidence)
	} else {
		// Never invent a category: first candidate, reduced confidence.
		slog.Warn("model returned category outside candidate list",
			"user", userID, "answer", parsed.Category)
		out.Category = candidates[0]
		out.Confidence = clamp01(parsed.Confidence * 0.5)
	}

	o.record(userID, "category", res.Usage.TotalTokens, res.Model, nil)
	return out, nil
}

// searchResponse is the structured output requested from the model.
type searchResponse struct {
	Interpretation string `json:"interpretation"`
	Results        []struct {
		ID     string  `json:"id"`
		Score  float64 `json:"score"`
		Reason string  `json:"reason"`
	} `json:"results"`
}

// minSearchScore filters weak matches from semantic search results.
const minSearchScore = 0.3

// SemanticSearch scores candidate bookmarks against a natural-language
// query. Candidates beyond the configured cap are dropped before
// prompting; results referencing unknown IDs (model hallucination) and
// results at or below the score threshold are discarded.
func (o *Orchestrator) SemanticSearch(ctx context.Context, userID, query string, candidates []SearchCandidate) (SearchResult, error) {
	if err := o.allow(userID); err != nil {
		return SearchResult{}, err
	}
	if len(candidates) == 0 {
		return SearchResult{}, nil
	}
	if len(candidates) > o.opts.MaxSearchCandidates {
		candidates = candidates[:o.opts.MaxSearchCandidates]
	}

	promptCands := make([]prompt.Candidate, len(candidates))
	known := make(map[string]struct{}, len(candidates))
	for i, c := range candidates {
		promptCands[i] = prompt.Candidate{ID: c.ID, Title: c.Title, Description: c.Description}
		known[c.ID] = struct{}{}
	}

	system, user := prompt.Search(query, promptCands)
	res, err := o.completer.Complete(ctx, completion.Request{
		SystemPrompt: system,
		UserMessage:  user,
		Model:        completion.ModelPrimary,
		MaxTokens:    o.opts.SearchMaxTokens,
		Temperature:  o.opts.Temperature,
		Format:       completion.FormatJSON,
	})
	if err != nil {
		wrapped := wrapOp(aierr.CodeSearchFailed, err, "searching bookmarks")
		o.record(userID, "search", 0, "", wrapped)
		return SearchResult{}, wrapped
	}

	raw, ok := extractJSON(res.Content)
	if !ok {
		wrapped := aierr.Wrap(aierr.CodeSearchFailed, errors.New("no JSON object in response"), "parsing search response")
		o.record(userID, "search", res.Usage.TotalTokens, res.Model, wrapped)
		return SearchResult{}, wrapped
	}
	var parsed searchResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		wrapped := aierr.Wrap(aierr.CodeSearchFailed, err, "parsing search response")
		o.record(userID, "search", res.Usage.TotalTokens, res.Model, wrapped)
		return SearchResult{}, wrapped
	}

	out := SearchResult{
		Interpretation: trimmed(parsed.Interpretation),
		TokensUsed:     res.Usage.TotalTokens,
	}
	for _, r := range parsed.Results {
		if _, exists := known[r.ID]; !exists {
			continue
		}
		score := clamp01(r.Score)
		if score <= minSearchScore {
			continue
		}
		out.Results = append(out.Results, SearchMatch{ID: r.ID, Score: score, Reason: trimmed(r.Reason)})
	}
	sort.SliceStable(out.Results, func(i, j int) bool {
		return out.Results[i].Score > out.Results[j].Score
	})

	o.record(userID, "search", res.Usage.TotalTokens, res.Model, nil)
	return out, nil
}

// EnrichNewBookmark runs summary, tags, and category suggestion in that
// fixed order against the shared per-user budget. Enrichment is
// best-effort: each sub-operation's failure is logged and swallowed so
// one missing signal never blocks the others. Only its own rate check
// can fail the composite call.
func (o *Orchestrator) EnrichNewBookmark(ctx context.Context, userID string, in EnrichmentInput) (EnrichmentResult, error) {
	if err := o.allow(userID); err != nil {
		return EnrichmentResult{}, err
	}

	var out EnrichmentResult

	summary, err := o.Summarize(ctx, userID, in.Bookmark)
	if err != nil {
		slog.Warn("enrichment: summary failed", "user", userID, "error", err)
	} else {
		out.Summary = summary.Summary
		out.TokensUsed += summary.TokensUsed
	}

	tags, err := o.SuggestTags(ctx, userID, in.Bookmark)
	if err != nil {
		slog.Warn("enrichment: tag suggestion failed", "user", userID, "error", err)
	} else {
		out.SuggestedTags = tags.Tags
		out.TokensUsed += tags.TokensUsed
	}

	category, err := o.SuggestCategory(ctx, userID, in.Bookmark, in.Categories)
	if err != nil {
		slog.Warn("enrichment: category suggestion failed", "user", userID, "error", err)
	} else {
		out.TokensUsed += category.TokensUsed
		if category.Confidence > minCategoryConfidence {
			out.SuggestedCategory = category.Category
		}
	}

	o.record(userID, "enrich", out.TokensUsed, "", nil)
	return out, nil
}

// wrapOp wraps a completion failure in the operation-specific code.
// Timeouts and rate limits keep their own codes so callers see the
// retry guidance.
func wrapOp(code aierr.Code, err error, msg string) error {
	switch aierr.CodeOf(err) {
	case aierr.CodeTimeout, aierr.CodeRateLimited:
		return err
	}
	return aierr.Wrap(code, err, "%s", msg)
}

func (o *Orchestrator) record(userID, operation string, tokens int, model string, opErr error) {
	if o.recorder == nil {
		return
	}
	rec := OperationRecord{
		UserID:     userID,
		Operation:  operation,
		Status:     "completed",
		TokensUsed: tokens,
		Model:      model,
	}
	if opErr != nil {
		rec.Status = "failed"
		rec.ErrorCode = string(aierr.CodeOf(opErr))
	}
	o.recorder.RecordOperation(rec)
}

func bookmarkPrompt(in BookmarkInput) prompt.Bookmark {
	return prompt.Bookmark{
		Title:       in.Title,
		URL:         in.URL,
		Description: in.Description,
		Content:     in.Content,
	}
}
