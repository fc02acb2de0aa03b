// Package model defines the gateway contract between the orchestration core
// and a language model provider. The core never inspects provider internals;
// it only reacts to the two Outcome shapes (tool calls or a final payload) and
// the two error kinds (transient or fatal).
package model

import (
	"context"
	"encoding/json"

	"github.com/turnloop/turnloop/core"
	"github.com/turnloop/turnloop/schema"
)

// Definition declaratively exposes a callable tool to the model. Parameters is
// a JSON Schema object (draft agnostic, minimal subset expected).
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the orchestration
// core: instructions (system framing), the full message history, the exposed
// tool definitions and the declared response schema.
type Request struct {
	Instructions   string                `json:"instructions"`
	Messages       []core.Message        `json:"messages"`
	Tools          []Definition          `json:"tools,omitempty"`
	ResponseSchema schema.ResponseSchema `json:"response_schema"`
}

// TokenUsage captures token usage statistics for a call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Outcome is the result of one model call: either an ordered list of tool
// invocation requests or a final raw payload to validate against the response
// schema. Exactly one of the two is populated.
type Outcome struct {
	ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
	Final     json.RawMessage `json:"final,omitempty"`
	Usage     *TokenUsage     `json:"usage,omitempty"`
}

// IsFinal reports whether the outcome carries a final payload rather than
// tool calls.
func (o Outcome) IsFinal() bool { return len(o.ToolCalls) == 0 }

// Info contains metadata about a gateway implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "stub", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Gateway is the minimal interface required by the orchestration core to
// drive generation. Implementations adapt a provider SDK, classify failures
// into TransientError / FatalError and must be safe for concurrent calls.
type Gateway interface {
	Call(ctx context.Context, req Request) (Outcome, error)

	// Info returns information about the gateway implementation.
	Info() Info
}
