package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/turnloop/turnloop/core"
	"github.com/turnloop/turnloop/tool"
)

// dispatchToolCalls executes a batch of requested tool calls and appends
// exactly one tool result message per request, in the model's request order.
// Individual tool failures and timeouts are captured as results; only turn
// cancellation aborts the batch.
func (a *Agent) dispatchToolCalls(runCtx *core.RunContext, calls []core.ToolCall) error {
	if len(calls) == 1 {
		msg := a.executeToolCall(runCtx, calls[0])
		if err := runCtx.Err(); err != nil {
			return err
		}
		return runCtx.Append(msg)
	}

	// Bounded fan-out into a positional buffer so append order matches the
	// request order regardless of completion order.
	results := make([]core.Message, len(calls))
	sem := make(chan struct{}, a.maxParallelTools)
	done := make(chan int, len(calls))

	for i, call := range calls {
		go func(idx int, tc core.ToolCall) {
			sem <- struct{}{}
			defer func() { <-sem }()
			results[idx] = a.executeToolCall(runCtx, tc)
			done <- idx
		}(i, call)
	}
	for range calls {
		<-done
	}

	if err := runCtx.Err(); err != nil {
		return err
	}
	for _, msg := range results {
		if err := runCtx.Append(msg); err != nil {
			return err
		}
	}
	return nil
}

type toolOutcome struct {
	result any
	err    error
}

// executeToolCall runs one tool call under the per-call timeout and converts
// the outcome into a tool result message. Handler panics and timeouts become
// captured tool errors visible to the model on the next call.
func (a *Agent) executeToolCall(runCtx *core.RunContext, call core.ToolCall) core.Message {
	callCtx, cancel := context.WithTimeout(runCtx.Context, a.toolTimeout)
	defer cancel()

	toolCtx := core.NewToolContext(callCtx, runCtx, call.ID)
	start := time.Now()

	ch := make(chan toolOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- toolOutcome{err: tool.NewToolError(call.Name, fmt.Sprintf("tool panicked: %v", r), tool.CodeExecutionError)}
			}
		}()
		result, err := a.registry.Invoke(toolCtx, call.Name, call.Arguments)
		ch <- toolOutcome{result: result, err: err}
	}()

	var out toolOutcome
	select {
	case out = <-ch:
	case <-callCtx.Done():
		if runCtx.Err() != nil {
			// Turn cancelled; the caller discards the batch.
			return core.Message{}
		}
		out = toolOutcome{err: tool.NewToolError(call.Name,
			fmt.Sprintf("tool timed out after %s", a.toolTimeout), tool.CodeTimeout)}
	}

	runCtx.LogDebug("agent.tool.executed",
		"agent", a.name,
		"tool", call.Name,
		"tool_call_id", call.ID,
		"success", out.err == nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return core.NewToolResultMessage(call, out.result, out.err)
}
