package core

// Context carries caller-scoped values (identity, tenant, locale, ...) for a
// single agent invocation. It is created once by the caller, never mutated
// during the turn and never inserted into the message history. Tool handlers
// receive it through their ToolContext; concurrent tool invocations within the
// same turn observe the same snapshot.
type Context struct {
	values map[string]any
}

// NewContext builds an immutable Context from the given values. The map is
// copied so later mutations by the caller do not leak into a running turn.
func NewContext(values map[string]any) Context {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Context{values: copied}
}

// EmptyContext returns a Context with no values, for invocations whose tools
// do not require caller data.
func EmptyContext() Context { return Context{} }

// Value returns the value bound to key and whether it was present.
func (c Context) Value(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// StringValue returns the value bound to key if it is a string, else "".
func (c Context) StringValue(key string) string {
	if v, ok := c.values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Keys returns the number of values carried by the context.
func (c Context) Keys() int { return len(c.values) }
