package content

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleHTML = `<!DOCTYPE html>
<html>
<head>
  <title>Go Scheduler Notes</title>
  <style>body { color: red; }</style>
  <script>console.log("noise");</script>
</head>
<body>
  <h1>Scheduling</h1>
  <p>Goroutines are multiplexed onto OS threads.</p>
  <div>Work stealing keeps processors   busy.</div>
  <noscript>enable javascript</noscript>
</body>
</html>`

func TestExtractHTML(t *testing.T) {
	page, err := ExtractHTML(strings.NewReader(sampleHTML))
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if page.Title != "Go Scheduler Notes" {
		t.Errorf("title = %q", page.Title)
	}
	for _, want := range []string{
		"Scheduling",
		"Goroutines are multiplexed onto OS threads.",
		"Work stealing keeps processors busy.",
	} {
		if !strings.Contains(page.Text, want) {
			t.Errorf("text missing %q in:\n%s", want, page.Text)
		}
	}
	for _, banned := range []string{"console.log", "color: red", "enable javascript"} {
		if strings.Contains(page.Text, banned) {
			t.Errorf("text leaked %q", banned)
		}
	}
}

func TestExtractHTML_EmptyDocument(t *testing.T) {
	page, err := ExtractHTML(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ExtractHTML: %v", err)
	}
	if page.Title != "" || page.Text != "" {
		t.Errorf("got %+v, want empty page", page)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	in := "  a   b \n\n\n c\td  \n"
	if got := collapseWhitespace(in); got != "a b\nc d" {
		t.Errorf("got %q", got)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		contentType string
		url         string
		want        docKind
	}{
		{"text/html; charset=utf-8", "https://example.com", kindHTML},
		{"application/pdf", "https://example.com/doc", kindPDF},
		{"", "https://example.com/paper.PDF", kindPDF},
		{"", "https://example.com/page", kindHTML},
		{"text/plain", "https://example.com/readme", kindHTML},
		{"application/octet-stream", "https://example.com/blob", kindPlain},
	}
	for _, tt := range tests {
		if got := kind(tt.contentType, tt.url); got != tt.want {
			t.Errorf("kind(%q, %q) = %v, want %v", tt.contentType, tt.url, got, tt.want)
		}
	}
}

func TestFetcher_FetchHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "linkwell") {
			t.Errorf("user agent = %q", ua)
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(sampleHTML))
	}))
	defer srv.Close()

	page, err := NewFetcher(0).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if page.Title != "Go Scheduler Notes" {
		t.Errorf("title = %q", page.Title)
	}
	if !strings.Contains(page.Text, "Goroutines") {
		t.Errorf("text = %q", page.Text)
	}
}

func TestFetcher_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewFetcher(0).Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestFetcher_TruncatesLargeBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("<p>" + strings.Repeat("a", 64) + "</p>"))
	}))
	defer srv.Close()

	f := NewFetcher(0)
	f.maxBytes = 16

	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(page.Text) > 16 {
		t.Errorf("body not limited: %d bytes", len(page.Text))
	}
}

func TestExtractPDF_Malformed(t *testing.T) {
	if _, err := ExtractPDF([]byte("not a pdf at all")); err == nil {
		t.Fatal("expected error for garbage input")
	}
}
