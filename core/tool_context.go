package core

import (
	"context"

	"github.com/turnloop/turnloop/logging"
)

// ToolContext provides a constrained, auditable surface for tool handlers
// invoked during a turn. It exposes the per-call cancellation context (which
// carries the tool timeout), correlation identifiers and the read-only caller
// Context without granting handlers access to the session history or store.
type ToolContext struct {
	ctx        context.Context
	runCtx     *RunContext
	toolCallID string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a parent RunContext and a
// unique tool call id. The supplied ctx is the per-call context derived by the
// dispatcher (typically with a timeout attached).
func NewToolContext(ctx context.Context, runCtx *RunContext, toolCallID string) *ToolContext {
	return &ToolContext{
		ctx:           ctx,
		runCtx:        runCtx,
		toolCallID:    toolCallID,
		loggerAdapter: newLoggerAdapter(runCtx.Logger()),
	}
}

// Context returns the cancellation context for this tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// SessionID returns the session the tool call belongs to.
func (tc *ToolContext) SessionID() string { return tc.runCtx.SessionID }

// TurnID returns the turn the tool call belongs to.
func (tc *ToolContext) TurnID() string { return tc.runCtx.TurnID }

// ToolCallID returns the id correlating this execution to the model's request.
func (tc *ToolContext) ToolCallID() string { return tc.toolCallID }

// Caller returns the immutable caller-scoped Context for this invocation.
// Concurrent tool calls within a turn observe the same snapshot.
func (tc *ToolContext) Caller() Context { return tc.runCtx.Caller }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }
