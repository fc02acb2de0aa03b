package tool

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/turnloop/turnloop/core"
)

// Registry holds the set of tools exposed to the model for a turn. Entries are
// built explicitly at startup and looked up by name; duplicate registration is
// a configuration error surfaced immediately, not a runtime condition.
//
// The registry is safe for concurrent invocation with independent arguments.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry constructs a registry from the given tools. It fails with
// ErrDuplicateTool if two tools share a name.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool, failing with ErrDuplicateTool if the name is taken.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Resolve returns the tool registered under name, failing with ErrUnknownTool
// if absent.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t, nil
}

// List returns all registered tools sorted by name for deterministic request
// building.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Invoke resolves name, parses the raw JSON arguments and dispatches to the
// tool. Errors (unknown tool, argument parse failures, handler errors) are
// returned for the dispatcher to capture into a tool message; they are never
// fatal to the turn.
func (r *Registry) Invoke(toolCtx *core.ToolContext, name string, rawArgs json.RawMessage) (any, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: fmt.Sprintf("malformed arguments: %v", err),
				Code:    CodeValidationError,
			}
		}
	}

	return t.Call(toolCtx, args)
}
