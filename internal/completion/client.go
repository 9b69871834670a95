// Package completion implements the retrying client for the remote
// model-completion backend (OpenAI-compatible chat completions API).
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/linkwell/linkwell/internal/aierr"
)

const (
	defaultBaseURL   = "https://openrouter.ai/api/v1"
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	defaultBaseDelay = 500 * time.Millisecond
	maxBackoff       = 30 * time.Second
)

// Completer is the interface consumed by the orchestrator.
type Completer interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL      string
	PrimaryModel string
	FastModel    string
	Timeout      time.Duration
	MaxRetries   int
	BaseDelay    time.Duration
}

// Client calls the completion backend with per-attempt timeouts and
// exponential backoff with jitter on retryable failures.
type Client struct {
	apiKey       string
	baseURL      string
	primaryModel string
	fastModel    string
	timeout      time.Duration
	maxRetries   int
	baseDelay    time.Duration
	httpClient   *http.Client
}

// NewClient creates a Client with the given API key and options.
func NewClient(apiKey string, opts Options) *Client {
	c := &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		primaryModel: "anthropic/claude-sonnet-4",
		fastModel:    "anthropic/claude-3-5-haiku",
		timeout:      defaultTimeout,
		maxRetries:   defaultRetries,
		baseDelay:    defaultBaseDelay,
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.PrimaryModel != "" {
		c.primaryModel = opts.PrimaryModel
	}
	if opts.FastModel != "" {
		c.fastModel = opts.FastModel
	}
	if opts.Timeout > 0 {
		c.timeout = opts.Timeout
	}
	if opts.MaxRetries > 0 {
		c.maxRetries = opts.MaxRetries
	}
	if opts.BaseDelay > 0 {
		c.baseDelay = opts.BaseDelay
	}
	c.httpClient = &http.Client{Timeout: 0} // per-attempt timeout via context
	return c
}

// chatMessage is one entry of the chat completions messages array.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the JSON body for POST /chat/completions.
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the JSON returned by POST /chat/completions.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

// statusError is returned for non-2xx responses so the retry loop can
// classify on the status code instead of matching message text.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

// Complete issues one completion request, retrying transient failures up
// to the configured retry limit. Terminal failures surface as *aierr.Error.
func (c *Client) Complete(ctx context.Context, req Request) (Result, error) {
	body, err := c.encode(req)
	if err != nil {
		return Result{}, aierr.Wrap(aierr.CodeRequestFailed, err, "encoding request")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		res, err := c.doComplete(ctx, body)
		if err == nil {
			return res, nil
		}

		// The caller's deadline takes precedence over classification:
		// abandoned attempts are not resumed.
		if ctx.Err() != nil {
			return Result{}, aierr.Wrap(aierr.CodeTimeout, ctx.Err(), "completion abandoned")
		}

		if !retryable(err) {
			if isAuthError(err) {
				return Result{}, aierr.Wrap(aierr.CodeMissingCredentials, err, "completion backend rejected credentials")
			}
			return Result{}, aierr.Wrap(aierr.CodeRequestFailed, err, "completion request failed")
		}

		lastErr = err
		if attempt < c.maxRetries {
			delay := c.backoff(attempt)
			slog.Debug("completion attempt failed, retrying",
				"attempt", attempt+1, "delay", delay, "error", err)
			select {
			case <-ctx.Done():
				return Result{}, aierr.Wrap(aierr.CodeTimeout, ctx.Err(), "completion abandoned during backoff")
			case <-time.After(delay):
			}
		}
	}

	return Result{}, aierr.Wrap(aierr.CodeMaxRetriesExceeded, lastErr,
		"giving up after %d attempts", c.maxRetries+1)
}

func (c *Client) encode(req Request) ([]byte, error) {
	model := c.primaryModel
	if req.Model == ModelFast {
		model = c.fastModel
	}

	cr := chatRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.SystemPrompt != "" {
		cr.Messages = append(cr.Messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	cr.Messages = append(cr.Messages, chatMessage{Role: "user", Content: req.UserMessage})
	if req.Format == FormatJSON {
		cr.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	return json.Marshal(cr)
}

// doComplete performs one attempt with a bounded timeout.
func (c *Client) doComplete(ctx context.Context, body []byte) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, &statusError{status: resp.StatusCode, body: strings.TrimSpace(string(respBody))}
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decoding response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return Result{}, fmt.Errorf("response contains no choices")
	}

	return Result{
		Content: decoded.Choices[0].Message.Content,
		Usage:   decoded.Usage,
		Model:   decoded.Model,
	}, nil
}

// retryable classifies errors by type: rate limits, server errors,
// timeouts, and transport failures retry; everything else is terminal.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Transport-level failure (connection refused, reset, DNS).
	var ue *url.Error
	return errors.As(err, &ue)
}

func isAuthError(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusUnauthorized || se.status == http.StatusForbidden
	}
	return false
}

// backoff computes base_delay * 2^attempt plus up to 25% jitter, capped.
func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	d += jitter
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}
