package enrich

// BookmarkInput is the bookmark metadata handed in by the caller. The
// orchestrator never queries bookmark storage itself.
type BookmarkInput struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Content     string `json:"content"`
}

// hasText reports whether the bookmark carries any meaningful text.
func (b BookmarkInput) hasText() bool {
	return trimmed(b.Title) != "" || trimmed(b.Description) != "" || trimmed(b.Content) != ""
}

// SummaryResult is the outcome of a summarize call.
type SummaryResult struct {
	Summary    string `json:"summary"`
	TokensUsed int    `json:"tokens_used"`
}

// TagsResult is the outcome of a tag suggestion call. Tags are lowercase,
// deduplicated, and capped at five.
type TagsResult struct {
	Tags       []string `json:"tags"`
	Reasoning  string   `json:"reasoning,omitempty"`
	TokensUsed int      `json:"tokens_used"`
}

// CategoryResult is the outcome of a category suggestion call. Category
// is always one of the caller-supplied candidates (or the default when
// none were supplied); Confidence is clamped to [0, 1].
type CategoryResult struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
	TokensUsed int     `json:"tokens_used"`
}

// SearchCandidate is one bookmark eligible to match a semantic query.
type SearchCandidate struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// SearchMatch is one scored result. Score is in (0.3, 1].
type SearchMatch struct {
	ID     string  `json:"id"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason,omitempty"`
}

// SearchResult is the outcome of a semantic search call, sorted by
// score descending.
type SearchResult struct {
	Results        []SearchMatch `json:"results"`
	Interpretation string        `json:"interpretation,omitempty"`
	TokensUsed     int           `json:"tokens_used"`
}

// EnrichmentInput feeds the composite new-bookmark workflow.
type EnrichmentInput struct {
	Bookmark   BookmarkInput `json:"bookmark"`
	Categories []string      `json:"categories"`
}

// EnrichmentResult aggregates whichever sub-operations succeeded.
// Missing fields mean that signal was unavailable, not that the call
// failed.
type EnrichmentResult struct {
	Summary           string   `json:"summary,omitempty"`
	SuggestedTags     []string `json:"suggested_tags,omitempty"`
	SuggestedCategory string   `json:"suggested_category,omitempty"`
	TokensUsed        int      `json:"tokens_used"`
}

// OperationRecord is one audit entry handed to a Recorder.
type OperationRecord struct {
	UserID     string
	Operation  string
	Status     string
	TokensUsed int
	Model      string
	ErrorCode  string
}

// Recorder receives operation outcomes for auditing. Implementations
// must be cheap; recording failures are the implementation's problem.
type Recorder interface {
	RecordOperation(rec OperationRecord)
}
