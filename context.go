package flowtify

import (
	"fmt"
	"sync"
)

// Context is the key-value store shared by the steps of one execution.
// It always holds the execution input under InputKey; the engine adds each
// step's output under the step's key once the step has succeeded.
//
// Keys keep the order in which they were first written. Writing an existing
// key replaces its value (last write wins) without moving it.
// A Context is safe for concurrent use.
type Context struct {
	mu     sync.RWMutex
	keys   []string
	values map[string]any

	// written holds the keys set since the context was created or cloned.
	written map[string]struct{}
}

// NewContext creates a context seeded with input. The engine creates one per
// execution; callers need it only to exercise steps in isolation.
func NewContext(input any) *Context {
	return &Context{
		keys:    []string{InputKey},
		values:  map[string]any{InputKey: input},
		written: make(map[string]struct{}),
	}
}

// Input returns the value passed to Execute.
func (c *Context) Input() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[InputKey]
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores v under key. Steps may use it to publish values other than
// their output; InputKey cannot be overwritten.
func (c *Context) Set(key string, v any) error {
	if key == InputKey {
		return fmt.Errorf("setting %q: %w", key, ErrReservedKey)
	}
	c.set(key, v)
	return nil
}

func (c *Context) set(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; !ok {
		c.keys = append(c.keys, key)
	}
	c.values[key] = v
	c.written[key] = struct{}{}
}

// Keys returns the keys in first-write order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	return keys
}

// Len returns the number of keys, including InputKey.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// Map returns a copy of the context contents.
func (c *Context) Map() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m := make(map[string]any, len(c.values))
	for k, v := range c.values {
		m[k] = v
	}
	return m
}

// clone returns an independent copy. Values themselves are not copied.
func (c *Context) clone() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, len(c.keys))
	copy(keys, c.keys)
	values := make(map[string]any, len(c.values))
	for k, v := range c.values {
		values[k] = v
	}
	return &Context{keys: keys, values: values, written: make(map[string]struct{})}
}

// merge copies every entry of other into c, in other's key order, except
// InputKey. Entries of other win on collision.
func (c *Context) merge(other *Context) {
	if other == nil || other == c {
		return
	}
	for _, k := range other.Keys() {
		if k == InputKey {
			continue
		}
		v, _ := other.Get(k)
		c.set(k, v)
	}
}

// mergeWritten copies the entries written to other since it was cloned.
// It folds a parallel member's private context back into the live one.
func (c *Context) mergeWritten(other *Context) {
	for _, k := range other.Keys() {
		if k == InputKey {
			continue
		}
		other.mu.RLock()
		_, dirty := other.written[k]
		v := other.values[k]
		other.mu.RUnlock()
		if dirty {
			c.set(k, v)
		}
	}
}

// Value returns the value stored under key as a T. The boolean is false when
// the key is missing or holds a value of another type.
//
// Example:
//
//	user, ok := flowtify.Value[User](c, "user")
func Value[T any](c *Context, key string) (T, bool) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MustValue is like Value but reports why the value could not be returned.
func MustValue[T any](c *Context, key string) (T, error) {
	var zero T
	v, ok := c.Get(key)
	if !ok {
		return zero, fmt.Errorf("context key %q not found", key)
	}
	typed, ok := v.(T)
	if !ok {
		return zero, typeMismatch[T](v, fmt.Sprintf("context key %q", key))
	}
	return typed, nil
}
