package pipeline

import (
	"fmt"
	"sync"
)

// Stage result keys in the shared analysis context, in pipeline order.
const (
	KeyQuery     = "query"
	KeyLog       = "log"
	KeyCode      = "code"
	KeyMetrics   = "metrics"
	KeyIncidents = "incidents"
	KeyTicket    = "ticket"
)

// Context is the append-only result store shared by the pipeline stages.
// Each key is written exactly once by the stage that owns it; later stages
// read earlier results but never mutate them. Key order is insertion order,
// which the executor keeps fixed across runs.
type Context struct {
	mu     sync.Mutex
	order  []string
	values map[string]any
}

func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set records a stage result. Writing a key twice is a programming error.
func (c *Context) Set(key string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.values[key]; exists {
		return fmt.Errorf("context key %q already written", key)
	}
	c.values[key] = value
	c.order = append(c.order, key)
	return nil
}

// Get returns the value for key and whether it has been written.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.values[key]
	return v, ok
}

// Keys returns the written keys in insertion order.
func (c *Context) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}
