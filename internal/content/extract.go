// Package content fetches bookmarked pages and extracts plain text from
// HTML and PDF documents so enrichment prompts can include the page body.
package content

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// maxFetchBytes bounds how much of a remote document is read.
	maxFetchBytes = 2 << 20 // 2 MiB
	defaultUA     = "linkwell/1.0 (+bookmark enrichment)"
)

// Page is the extracted text of a fetched document.
type Page struct {
	Title string
	Text  string
}

// Fetcher downloads a URL and extracts its text content.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// NewFetcher creates a Fetcher. If timeout is <= 0, it defaults to 15s.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxFetchBytes,
	}
}

// Fetch downloads rawURL and extracts text. The document kind is decided
// by the response Content-Type, falling back to the URL path extension.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", defaultUA)
	req.Header.Set("Accept", "text/html, application/pdf, text/plain;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("fetching %s: unexpected status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return Page{}, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	switch kind(resp.Header.Get("Content-Type"), rawURL) {
	case kindPDF:
		return ExtractPDF(body)
	case kindHTML:
		return ExtractHTML(strings.NewReader(string(body)))
	default:
		return Page{Text: strings.TrimSpace(string(body))}, nil
	}
}

type docKind int

const (
	kindPlain docKind = iota
	kindHTML
	kindPDF
)

func kind(contentType, rawURL string) docKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "application/pdf"):
		return kindPDF
	case strings.Contains(ct, "text/html"), strings.Contains(ct, "application/xhtml"):
		return kindHTML
	}
	if strings.HasSuffix(strings.ToLower(rawURL), ".pdf") {
		return kindPDF
	}
	if ct == "" || strings.Contains(ct, "text/") {
		return kindHTML
	}
	return kindPlain
}
