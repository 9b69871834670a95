package completion

import (
	"context"
	"sync"

	"github.com/linkwell/linkwell/internal/aierr"
)

// Factory hands out a single lazily-constructed Client. The client is
// created on first use and reused for the process lifetime; construction
// fails with MISSING_CREDENTIALS when no API key is configured. Tests
// create a fresh Factory per run instead of sharing a package global.
type Factory struct {
	mu     sync.Mutex
	apiKey string
	opts   Options
	client *Client
}

// NewFactory creates a Factory. The key is validated on first Client call,
// not here, so a server can start without credentials and fail per call.
func NewFactory(apiKey string, opts Options) *Factory {
	return &Factory{apiKey: apiKey, opts: opts}
}

// Client returns the shared Client, constructing it on first call.
func (f *Factory) Client() (*Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.client != nil {
		return f.client, nil
	}
	if f.apiKey == "" {
		return nil, aierr.New(aierr.CodeMissingCredentials, false,
			"no completion API key configured")
	}
	f.client = NewClient(f.apiKey, f.opts)
	return f.client, nil
}

// Complete implements Completer by deferring to the lazily-constructed
// client, so a missing API key surfaces per call instead of at startup.
func (f *Factory) Complete(ctx context.Context, req Request) (Result, error) {
	c, err := f.Client()
	if err != nil {
		return Result{}, err
	}
	return c.Complete(ctx, req)
}

var _ Completer = (*Factory)(nil)
