package enrich

import (
	"reflect"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"tags":["go"]}`, `{"tags":["go"]}`, true},
		{"code fence", "```json\n{\"score\": 0.8}\n```", "{\"score\": 0.8}", true},
		{"fence no lang", "```\n{\"a\":1}\n```", "{\"a\":1}", true},
		{"conversational filler", `Sure! Here you go: {"category":"News"} hope that helps`, `{"category":"News"}`, true},
		{"no object", "just words", "", false},
		{"empty", "", "", false},
		{"unbalanced", "} {", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSON(tt.in)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if tt.ok && got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{-0.5, 0}, {0, 0}, {0.42, 0.42}, {1, 1}, {7.3, 1},
	}
	for _, tt := range tests {
		if got := clamp01(tt.in); got != tt.want {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHeuristicTags(t *testing.T) {
	raw := "Here are some tags:\n- Golang\n- Concurrency\nweb, Golang, x, " +
		"averyveryverylongtagnamethatjustkeepsgoingandgoingwaytoolong, testing"
	got := heuristicTags(raw)

	if len(got) > maxTags {
		t.Fatalf("got %d tags, want <= %d", len(got), maxTags)
	}
	seen := map[string]bool{}
	for _, tag := range got {
		if tag != toLowerASCII(tag) {
			t.Errorf("tag %q not lowercase", tag)
		}
		if len(tag) < minTagLen {
			t.Errorf("tag %q below minimum length", tag)
		}
		if seen[tag] {
			t.Errorf("duplicate tag %q", tag)
		}
		seen[tag] = true
	}
	if !seen["golang"] || !seen["concurrency"] {
		t.Errorf("expected golang and concurrency in %v", got)
	}
	if seen["x"] {
		t.Error("single-character tag survived the length filter")
	}
	if seen["averyveryverylongtagnamethatjustkeepsgoingandgoingwaytoolong"] {
		t.Error("oversized tag survived the length filter")
	}
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func TestNormalizeTags_CapsAtFive(t *testing.T) {
	in := []string{"one1", "two2", "three", "four4", "five5", "six66", "seven"}
	got := normalizeTags(in)
	want := []string{"one1", "two2", "three", "four4", "five5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMatchCategory(t *testing.T) {
	candidates := []string{"Development", "development", "Design"}

	// Case-insensitive, first match in list order wins.
	got, ok := matchCategory("DEVELOPMENT", candidates)
	if !ok || got != "Development" {
		t.Errorf("got (%q, %v), want (Development, true)", got, ok)
	}

	got, ok = matchCategory(" design ", candidates)
	if !ok || got != "Design" {
		t.Errorf("got (%q, %v), want (Design, true)", got, ok)
	}

	if _, ok := matchCategory("Cooking", candidates); ok {
		t.Error("matched a category not in the list")
	}
}
