package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Message within a conversation.
type Role string

const (
	// RoleUser marks messages authored by the caller of the agent.
	RoleUser Role = "user"
	// RoleAssistant marks messages authored by the model (text or tool calls).
	RoleAssistant Role = "assistant"
	// RoleTool marks messages carrying the result of a single tool call.
	RoleTool Role = "tool"
	// RoleSystem marks framing/instruction messages injected by the agent.
	RoleSystem Role = "system"
)

// ToolCall describes a tool invocation requested by the model. It is created
// from a model outcome and consumed once its paired tool message has been
// appended to the session.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// Message is the primary unit of conversation history. After being appended to
// a session it should be treated as immutable. A tool message always carries
// the ToolCallID of the request it answers; ordering within a session is
// append-only and total.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewID generates a new unique identifier for messages, tool calls and turns.
func NewID() string { return uuid.NewString() }

func newMessage(role Role) Message {
	return Message{ID: NewID(), Role: role, Timestamp: time.Now().UTC()}
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	m := newMessage(RoleUser)
	m.Content = text
	return m
}

// NewAssistantMessage creates an assistant text message.
func NewAssistantMessage(text string) Message {
	m := newMessage(RoleAssistant)
	m.Content = text
	return m
}

// NewToolCallMessage creates an assistant message carrying one or more tool
// invocation requests in the order the model emitted them.
func NewToolCallMessage(calls []ToolCall) Message {
	m := newMessage(RoleAssistant)
	m.ToolCalls = calls
	return m
}

// NewToolResultMessage records the outcome of a previously requested tool call.
// A non-nil err is captured as a structured error payload so the model can see
// and react to the failure; it never aborts the surrounding turn.
func NewToolResultMessage(call ToolCall, result any, err error) Message {
	m := newMessage(RoleTool)
	m.ToolCallID = call.ID
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"tool": call.Name, "error": err.Error()})
		m.Content = string(payload)
		return m
	}
	switch v := result.(type) {
	case nil:
		m.Content = "null"
	case string:
		m.Content = v
	case json.RawMessage:
		m.Content = string(v)
	default:
		payload, merr := json.Marshal(v)
		if merr != nil {
			fallback, _ := json.Marshal(map[string]string{"tool": call.Name, "error": "unserializable tool result: " + merr.Error()})
			m.Content = string(fallback)
			return m
		}
		m.Content = string(payload)
	}
	return m
}

// HasToolCalls reports whether this message requests tool invocations.
func (m Message) HasToolCalls() bool { return len(m.ToolCalls) > 0 }
