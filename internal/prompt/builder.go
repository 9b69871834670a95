// Package prompt renders system/user prompt pairs for each enrichment
// operation. Renderers are pure: no state, no I/O, no randomness, so
// output is testable by string equality. Unbounded inputs are truncated
// deterministically to keep token usage predictable.
package prompt

import (
	"fmt"
	"strings"
)

const (
	// maxContentChars bounds bookmark content injected into a prompt.
	maxContentChars = 6000
	// truncationMarker is appended whenever content is cut.
	truncationMarker = "\n[content truncated]"
)

// Bookmark is the text a bookmark contributes to a prompt.
type Bookmark struct {
	Title       string
	URL         string
	Description string
	Content     string
}

// Candidate is one searchable bookmark reference for semantic search.
type Candidate struct {
	ID          string
	Title       string
	Description string
}

// Truncate cuts s at max characters, appending the truncation marker.
// Inputs at or under the budget pass through unchanged.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + truncationMarker
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Summary renders the prompt pair for bookmark summarization.
func Summary(b Bookmark) (system, user string) {
	system = "You summarize web bookmarks. Write a single concise paragraph (2-3 sentences) " +
		"describing what the page is about and why someone might have saved it. " +
		"Respond with the summary only, no preamble."
	user = renderBookmark(b)
	return system, user
}

// Tags renders the prompt pair for tag suggestion. The response is
// requested as JSON: {"tags": [...], "reasoning": "..."}.
func Tags(b Bookmark) (system, user string) {
	system = "You suggest tags for web bookmarks. Propose at most 5 short lowercase tags " +
		"capturing the page's topics. Respond with a JSON object: " +
		`{"tags": ["tag1", "tag2"], "reasoning": "one sentence"}.`
	user = renderBookmark(b)
	return system, user
}

// Category renders the prompt pair for category suggestion against a
// fixed candidate list. The response is requested as JSON:
// {"category": "...", "confidence": 0.0-1.0, "reasoning": "..."}.
func Category(b Bookmark, candidates []string) (system, user string) {
	system = "You file web bookmarks into the user's existing categories. Pick exactly one " +
		"category from the provided list. Respond with a JSON object: " +
		`{"category": "name from list", "confidence": 0.0, "reasoning": "one sentence"}. ` +
		"Confidence is between 0 and 1."
	var sb strings.Builder
	sb.WriteString(renderBookmark(b))
	sb.WriteString("\nCategories:\n")
	for _, c := range candidates {
		sb.WriteString("- ")
		sb.WriteString(c)
		sb.WriteString("\n")
	}
	return system, sb.String()
}

// Search renders the prompt pair for semantic search over candidate
// bookmarks. The response is requested as JSON:
// {"interpretation": "...", "results": [{"id": "...", "score": 0.0, "reason": "..."}]}.
func Search(query string, candidates []Candidate) (system, user string) {
	system = "You match a search query against a list of saved bookmarks. Score each relevant " +
		"bookmark between 0 and 1 and skip irrelevant ones. Respond with a JSON object: " +
		`{"interpretation": "what the user wants", "results": [{"id": "...", "score": 0.0, "reason": "..."}]}. ` +
		"Only use ids from the list."
	var sb strings.Builder
	sb.WriteString("Query: ")
	sb.WriteString(query)
	sb.WriteString("\nBookmarks:\n")
	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("%d. id=%s title=%q", i+1, c.ID, c.Title))
		if c.Description != "" {
			sb.WriteString(fmt.Sprintf(" description=%q", Truncate(c.Description, 200)))
		}
		sb.WriteString("\n")
	}
	return system, sb.String()
}

// renderBookmark lays out bookmark fields, skipping empty ones and
// truncating content to the character budget.
func renderBookmark(b Bookmark) string {
	var sb strings.Builder
	if b.Title != "" {
		sb.WriteString("Title: ")
		sb.WriteString(b.Title)
		sb.WriteString("\n")
	}
	if b.URL != "" {
		sb.WriteString("URL: ")
		sb.WriteString(b.URL)
		sb.WriteString("\n")
	}
	if b.Description != "" {
		sb.WriteString("Description: ")
		sb.WriteString(b.Description)
		sb.WriteString("\n")
	}
	if b.Content != "" {
		sb.WriteString("Content:\n")
		sb.WriteString(Truncate(b.Content, maxContentChars))
		sb.WriteString("\n")
	}
	return sb.String()
}
