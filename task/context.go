package task

import (
	"sync"

	"github.com/google/uuid"

	"go.lepak.sg/taskgraph/lmap"
)

// Context is a mutable bag of key-value state tagged with an
// invocation ID; NewContext creates a fresh one. taskgroup.Driver
// neither creates a Context nor hands one to the work items it
// dispatches: they receive only a context.Context. Get and Set are
// individually synchronized, but a caller performing a
// read-modify-write sequence on the bag is responsible for its own
// additional synchronization.
type Context struct {
	ID uuid.UUID

	mu  sync.Mutex
	bag *lmap.LinkedMap[string, any]
}

// NewContext returns a fresh, empty Context with a new invocation ID.
func NewContext() *Context {
	return &Context{
		ID:  uuid.New(),
		bag: lmap.New[string, any](),
	}
}

// Set stores v under key, overwriting any existing value.
func (c *Context) Set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bag.Set(key, v, false)
}

// Get retrieves the value stored under key, if any.
func (c *Context) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bag.Get(key, false)
}

// ForEach iterates the bag in insertion order, for inspection and
// debugging. As with lmap.LinkedMap.ForEach, returning false from f
// stops iteration early.
func (c *Context) ForEach(f func(key string, v any) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bag.ForEach(f)
}
