package core

import (
	"context"
	"fmt"

	"github.com/turnloop/turnloop/logging"
)

// RunContext carries execution state and helpers for one turn. It aggregates:
//   - The ambient cancellation Context
//   - Identifiers (SessionID, TurnID, agent name)
//   - The caller-supplied Context snapshot threaded to tool handlers
//   - The backing SessionStore for append/checkpoint operations
//   - A per-turn model call limiter
//
// The RunContext never holds a private mutable copy of the session across
// suspension points; history is always read back from the store so a resumed
// or concurrent view stays consistent.
type RunContext struct {
	Context   context.Context
	SessionID string
	TurnID    string
	AgentName string
	UserInput string
	Caller    Context
	Store     SessionStore
	Limiter   *CallLimiter

	*loggerAdapter
}

// NewRunContext constructs a RunContext for a single turn.
func NewRunContext(
	ctx context.Context,
	sessionID, turnID, agentName, userInput string,
	caller Context,
	store SessionStore,
	maxModelCalls int,
	logger logging.Logger,
) *RunContext {
	return &RunContext{
		Context:       ctx,
		SessionID:     sessionID,
		TurnID:        turnID,
		AgentName:     agentName,
		UserInput:     userInput,
		Caller:        caller,
		Store:         store,
		Limiter:       NewCallLimiter(maxModelCalls),
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Append records a message on the session via the store. Cancellation is
// checked up front so an abandoned turn never leaves a partial write behind.
func (rc *RunContext) Append(m Message) error {
	if rc.Store == nil {
		return fmt.Errorf("session store not configured")
	}
	if err := rc.Context.Err(); err != nil {
		return err
	}
	return rc.Store.Append(rc.Context, rc.SessionID, m)
}

// History returns a consistent snapshot of the session's message history.
func (rc *RunContext) History() ([]Message, error) {
	if rc.Store == nil {
		return nil, fmt.Errorf("session store not configured")
	}
	return rc.Store.Messages(rc.Context, rc.SessionID)
}
