package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/linkwell/linkwell/internal/enrich"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Enricher Enricher
}

// mcpUser is the rate-limit principal for tool calls that do not name
// one. Agent traffic shares a single budget.
const mcpUser = "mcp"

// NewMCPServer creates an MCP server exposing the enrichment operations
// as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"linkwell",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions("linkwell — AI enrichment for bookmarks: summaries, tags, categories, and semantic search."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("summarize_bookmark",
			mcp.WithDescription("Generate a short summary of a bookmarked page from its metadata and content."),
			mcp.WithString("title", mcp.Description("Bookmark title")),
			mcp.WithString("url", mcp.Description("Bookmark URL")),
			mcp.WithString("description", mcp.Description("Bookmark description")),
			mcp.WithString("content", mcp.Description("Extracted page text")),
			mcp.WithString("user", mcp.Description("Rate-limit principal (defaults to mcp)")),
		),
		mcpSummarize(deps),
	)

	s.AddTool(
		mcp.NewTool("suggest_tags",
			mcp.WithDescription("Suggest up to five lowercase tags for a bookmark."),
			mcp.WithString("title", mcp.Description("Bookmark title")),
			mcp.WithString("url", mcp.Description("Bookmark URL")),
			mcp.WithString("description", mcp.Description("Bookmark description")),
			mcp.WithString("content", mcp.Description("Extracted page text")),
			mcp.WithString("user", mcp.Description("Rate-limit principal (defaults to mcp)")),
		),
		mcpSuggestTags(deps),
	)

	s.AddTool(
		mcp.NewTool("suggest_category",
			mcp.WithDescription("Pick the best matching category for a bookmark from an existing list."),
			mcp.WithString("title", mcp.Description("Bookmark title")),
			mcp.WithString("url", mcp.Description("Bookmark URL")),
			mcp.WithString("description", mcp.Description("Bookmark description")),
			mcp.WithString("content", mcp.Description("Extracted page text")),
			mcp.WithArray("categories", mcp.Description("Existing category names to choose from"), mcp.Required()),
			mcp.WithString("user", mcp.Description("Rate-limit principal (defaults to mcp)")),
		),
		mcpSuggestCategory(deps),
	)

	s.AddTool(
		mcp.NewTool("search_bookmarks",
			mcp.WithDescription("Score candidate bookmarks against a natural-language query."),
			mcp.WithString("query", mcp.Description("Natural-language search query"), mcp.Required()),
			mcp.WithString("candidates", mcp.Description(`JSON array of {"id", "title", "description"} candidate bookmarks`), mcp.Required()),
			mcp.WithString("user", mcp.Description("Rate-limit principal (defaults to mcp)")),
		),
		mcpSearch(deps),
	)

	return s
}

func mcpBookmark(req mcp.CallToolRequest) enrich.BookmarkInput {
	return enrich.BookmarkInput{
		Title:       req.GetString("title", ""),
		URL:         req.GetString("url", ""),
		Description: req.GetString("description", ""),
		Content:     req.GetString("content", ""),
	}
}

func mcpPrincipal(req mcp.CallToolRequest) string {
	if u := req.GetString("user", ""); u != "" {
		return u
	}
	return mcpUser
}

func mcpSummarize(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Enricher.Summarize(ctx, mcpPrincipal(req), mcpBookmark(req))
		if err != nil {
			return mcpError(fmt.Sprintf("summarize failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpSuggestTags(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, err := deps.Enricher.SuggestTags(ctx, mcpPrincipal(req), mcpBookmark(req))
		if err != nil {
			return mcpError(fmt.Sprintf("tag suggestion failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpSuggestCategory(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		categories := req.GetStringSlice("categories", nil)
		if len(categories) == 0 {
			return mcpError("categories is required"), nil
		}

		res, err := deps.Enricher.SuggestCategory(ctx, mcpPrincipal(req), mcpBookmark(req), categories)
		if err != nil {
			return mcpError(fmt.Sprintf("category suggestion failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpSearch(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}
		candidatesJSON, err := req.RequireString("candidates")
		if err != nil {
			return mcpError("candidates is required"), nil
		}

		var candidates []enrich.SearchCandidate
		if err := json.Unmarshal([]byte(candidatesJSON), &candidates); err != nil {
			return mcpError(fmt.Sprintf("invalid candidates JSON: %v", err)), nil
		}

		res, err := deps.Enricher.SemanticSearch(ctx, mcpPrincipal(req), query, candidates)
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcpJSON(res)
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
