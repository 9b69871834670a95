package enrich

import (
	"strings"
)

// extractJSON pulls a JSON object out of a model response. Models
// frequently wrap JSON in markdown code fences or prepend conversational
// filler, so the extractor strips fences and then cuts from the first
// '{' to the last '}'.
func extractJSON(resp string) (string, bool) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = s[idx+3:]
		if strings.HasPrefix(s, "json") {
			s = s[4:]
		}
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// clamp01 forces a score into [0, 1] regardless of what the model said.
func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

const (
	minTagLen = 2
	maxTagLen = 40
	maxTags   = 5
)

// heuristicTags recovers tags from unstructured model output: split on
// commas and newlines, strip list markup, then normalize.
func heuristicTags(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	return normalizeTags(fields)
}

// normalizeTags lowercases, trims markup, length-filters, deduplicates,
// and caps the tag list at maxTags, preserving input order.
func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		t = strings.Trim(t, "-*#.\"'`[] ")
		if len(t) < minTagLen || len(t) > maxTagLen {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

// matchCategory finds name in candidates, case-insensitively, first
// match in list order winning. This is the deterministic tie-break for
// case variations that collide.
func matchCategory(name string, candidates []string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, c := range candidates {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}
