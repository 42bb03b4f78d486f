package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/centraunit/rebind"
)

// Client is a recording rebind.Client.
type Client struct {
	Name string

	invalid    atomic.Bool
	executions atomic.Int64

	mu        sync.Mutex
	err       error
	panicWith any
	onExecute func(ctx context.Context) error
	contexts  []context.Context
}

// NewClient returns a valid client.
func NewClient(name string) *Client {
	return &Client{Name: name}
}

// IsValid implements rebind.Client.
func (c *Client) IsValid() bool {
	return !c.invalid.Load()
}

// Invalidate marks the client's owner as disposed.
func (c *Client) Invalidate() {
	c.invalid.Store(true)
}

// ReExecute implements rebind.Client.
func (c *Client) ReExecute(ctx context.Context) error {
	c.executions.Add(1)

	c.mu.Lock()
	c.contexts = append(c.contexts, ctx)
	err, panicWith, hook := c.err, c.panicWith, c.onExecute
	c.mu.Unlock()

	if panicWith != nil {
		panic(panicWith)
	}
	if hook != nil {
		if hookErr := hook(ctx); hookErr != nil {
			return hookErr
		}
	}
	return err
}

// FailWith makes every following ReExecute return err.
func (c *Client) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// PanicWith makes every following ReExecute panic with v.
func (c *Client) PanicWith(v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panicWith = v
}

// OnExecute installs a hook run by ReExecute.
func (c *Client) OnExecute(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExecute = fn
}

// Executions returns how many times ReExecute ran.
func (c *Client) Executions() int {
	return int(c.executions.Load())
}

// LastContext returns the context of the latest ReExecute, or nil.
func (c *Client) LastContext() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.contexts) == 0 {
		return nil
	}
	return c.contexts[len(c.contexts)-1]
}

var _ rebind.Client = (*Client)(nil)
