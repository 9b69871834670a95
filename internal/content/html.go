package content

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ExtractHTML parses an HTML document and returns its title and visible
// text. Script, style, and template subtrees are skipped; whitespace is
// collapsed so the result reads as continuous prose.
func ExtractHTML(r io.Reader) (Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Page{}, fmt.Errorf("parsing html: %w", err)
	}

	var page Page
	var sb strings.Builder
	walkHTML(doc, &page, &sb)
	page.Text = collapseWhitespace(sb.String())
	return page, nil
}

func walkHTML(n *html.Node, page *Page, sb *strings.Builder) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "noscript", "template", "iframe", "svg":
			return
		case "title":
			if page.Title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				page.Title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article":
			sb.WriteString("\n")
		}
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, page, sb)
	}
}

// collapseWhitespace squeezes runs of spaces and keeps at most one blank
// line between blocks.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
