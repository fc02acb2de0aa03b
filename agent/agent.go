// Package agent implements the turn-taking orchestration core: the state
// machine that interleaves model calls and tool calls, persists progress
// through the session store and finalizes a turn only once the model produces
// output conforming to the declared response schema.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/turnloop/turnloop/core"
	"github.com/turnloop/turnloop/logging"
	"github.com/turnloop/turnloop/model"
	"github.com/turnloop/turnloop/schema"
	"github.com/turnloop/turnloop/tool"
)

// DefaultRepairAttempts bounds how often a turn re-prompts the model after a
// response schema violation before it is marked failed. Unbounded repair is
// deliberately not supported.
const DefaultRepairAttempts = 2

// Options configures an Agent instance. Use functional options with New to
// override defaults.
type Options struct {
	// Instruction provides the system framing for every model call.
	Instruction Instruction
	// Tools are registered at construction; duplicate names fail startup.
	Tools []tool.Tool
	// SessionStore persists conversation state (defaults are supplied by the
	// façade; the zero value is rejected by New).
	SessionStore core.SessionStore
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
	// MaxModelAttempts caps gateway calls per MODEL_CALL state including the
	// first try. Only transient errors are retried.
	MaxModelAttempts int
	// BackoffBase / BackoffCap shape the capped exponential retry backoff.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// RepairAttempts bounds schema-violation repair rounds per turn.
	RepairAttempts int
	// MaxModelCalls caps total model calls per turn (tool loop included).
	MaxModelCalls int
	// ModelTimeout bounds a single gateway call.
	ModelTimeout time.Duration
	// ToolTimeout bounds a single tool handler execution. A timeout becomes a
	// captured tool error, not a turn failure.
	ToolTimeout time.Duration
	// MaxParallelTools bounds concurrent executions within one dispatch batch.
	MaxParallelTools int
}

// Agent drives complete turns against a model gateway: it loads the session,
// appends the user message, loops through model and tool calls, validates the
// final payload and reports a terminal result. An Agent is immutable after
// construction and safe for concurrent turns on distinct sessions.
type Agent struct {
	name             string
	gateway          model.Gateway
	registry         *tool.Registry
	validator        *schema.Validator
	instruction      Instruction
	store            core.SessionStore
	logger           logging.Logger
	maxModelAttempts int
	backoffBase      time.Duration
	backoffCap       time.Duration
	repairAttempts   int
	maxModelCalls    int
	modelTimeout     time.Duration
	toolTimeout      time.Duration
	maxParallelTools int
}

// New creates an agent with sensible defaults. Tool registration and response
// schema compilation happen here so configuration errors (duplicate tool
// names, invalid schemas) surface at startup, never mid-turn.
func New(name string, gateway model.Gateway, responseSchema schema.ResponseSchema, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Instruction:      NewInstructionFromText(fmt.Sprintf("You are %s, a helpful assistant.", name)),
		Logger:           logging.NoOpLogger{},
		MaxModelAttempts: 3,
		BackoffBase:      200 * time.Millisecond,
		BackoffCap:       5 * time.Second,
		RepairAttempts:   DefaultRepairAttempts,
		MaxModelCalls:    10,
		ModelTimeout:     60 * time.Second,
		ToolTimeout:      15 * time.Second,
		MaxParallelTools: 4,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if gateway == nil {
		return nil, fmt.Errorf("agent %s: model gateway is required", name)
	}
	if opts.SessionStore == nil {
		return nil, fmt.Errorf("agent %s: session store is required", name)
	}

	registry, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}
	validator, err := schema.NewValidator(responseSchema)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	return &Agent{
		name:             name,
		gateway:          gateway,
		registry:         registry,
		validator:        validator,
		instruction:      opts.Instruction,
		store:            opts.SessionStore,
		logger:           opts.Logger,
		maxModelAttempts: opts.MaxModelAttempts,
		backoffBase:      opts.BackoffBase,
		backoffCap:       opts.BackoffCap,
		repairAttempts:   opts.RepairAttempts,
		maxModelCalls:    opts.MaxModelCalls,
		modelTimeout:     opts.ModelTimeout,
		toolTimeout:      opts.ToolTimeout,
		maxParallelTools: opts.MaxParallelTools,
	}, nil
}

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// Registry exposes the agent's tool registry for introspection.
func (a *Agent) Registry() *tool.Registry { return a.registry }

// Status describes the terminal outcome of a turn.
type Status string

const (
	// StatusDone marks a turn that produced a validated structured response.
	StatusDone Status = "done"
	// StatusFailed marks a turn that ended without a valid response.
	StatusFailed Status = "failed"
)

// Result is the caller-visible outcome of a turn. Response is either fully
// valid per the declared schema or nil; a failed turn carries a specific
// ErrorKind, never a partial response.
type Result struct {
	Status    Status
	Response  schema.ParsedResponse
	ErrorKind core.ErrorKind
	Err       error
}

// Invoke runs one full turn for the given session: the user input is appended,
// the model is consulted (with tool dispatch rounds in between) until it
// produces a final payload that validates against the response schema, and
// the terminal result is returned. callerCtx values are visible to tool
// handlers only; they never enter the message history.
//
// Invoke returns a non-nil error only for infrastructure failures
// (cancellation, store errors) where no terminal result could be recorded.
// Model, schema and budget failures are reported through Result.ErrorKind.
func (a *Agent) Invoke(ctx context.Context, sessionID, userInput string, callerCtx core.Context) (*Result, error) {
	turnID := core.NewID()
	runCtx := core.NewRunContext(ctx, sessionID, turnID, a.name, userInput, callerCtx, a.store, a.maxModelCalls, a.logger)
	start := time.Now()

	// LOADING: restore the session and record the incoming user message.
	sess, err := a.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	if sess.Status != core.StatusActive {
		if err := a.store.SetStatus(ctx, sessionID, core.StatusActive); err != nil {
			return nil, fmt.Errorf("reactivate session %s: %w", sessionID, err)
		}
	}
	if err := runCtx.Append(core.NewUserMessage(userInput)); err != nil {
		return nil, err
	}

	runCtx.LogInfo("agent.turn.start", "agent", a.name, "session_id", sessionID, "turn_id", turnID)

	repairsLeft := a.repairAttempts
	for {
		if err := runCtx.Limiter.Increment(); err != nil {
			return a.fail(runCtx, core.ErrorKindCallBudgetExceeded, err)
		}

		req, err := a.buildRequest(runCtx)
		if err != nil {
			if runCtx.Err() != nil {
				return nil, runCtx.Err()
			}
			return a.fail(runCtx, core.ErrorKindInternal, err)
		}

		outcome, err := a.callModel(runCtx, req)
		if err != nil {
			if runCtx.Err() != nil {
				return nil, runCtx.Err()
			}
			if model.IsFatal(err) {
				return a.fail(runCtx, core.ErrorKindModelFatal, err)
			}
			return a.fail(runCtx, core.ErrorKindModelUnavailable, err)
		}

		// TOOL_DISPATCH: run the requested tools, record one tool message per
		// request in the model's order, then go back to the model.
		if !outcome.IsFinal() {
			if err := runCtx.Append(core.NewToolCallMessage(outcome.ToolCalls)); err != nil {
				return nil, err
			}
			if err := a.dispatchToolCalls(runCtx, outcome.ToolCalls); err != nil {
				return nil, err
			}
			continue
		}

		// VALIDATING
		parsed, verr := a.validator.Validate(outcome.Final)
		if verr == nil {
			if err := runCtx.Append(core.NewAssistantMessage(string(outcome.Final))); err != nil {
				return nil, err
			}
			if err := a.store.SetStatus(ctx, sessionID, core.StatusCompleted); err != nil {
				return nil, fmt.Errorf("complete session %s: %w", sessionID, err)
			}
			runCtx.LogInfo("agent.turn.done",
				"agent", a.name,
				"session_id", sessionID,
				"model_calls", runCtx.Limiter.Count(),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return &Result{Status: StatusDone, Response: parsed}, nil
		}

		var violation *schema.Violation
		if !errors.As(verr, &violation) {
			return a.fail(runCtx, core.ErrorKindInternal, verr)
		}
		if repairsLeft == 0 {
			return a.fail(runCtx, core.ErrorKindSchemaViolation, violation)
		}

		// REPAIR: keep the invalid payload in the trail and re-prompt the
		// model with the violation description.
		repairsLeft--
		runCtx.LogWarn("agent.turn.repair",
			"agent", a.name,
			"session_id", sessionID,
			"repairs_left", repairsLeft,
			"violation", violation.Error(),
		)
		if err := runCtx.Append(core.NewAssistantMessage(string(outcome.Final))); err != nil {
			return nil, err
		}
		if err := runCtx.Append(core.NewUserMessage(repairPrompt(violation))); err != nil {
			return nil, err
		}
	}
}

// callModel performs one MODEL_CALL state: the assembled request is sent to
// the gateway, with capped exponential backoff on transient errors up to the
// fixed attempt limit.
func (a *Agent) callModel(runCtx *core.RunContext, req model.Request) (model.Outcome, error) {
	var lastErr error
	for attempt := 0; attempt < a.maxModelAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(a.backoffBase, a.backoffCap, attempt)
			runCtx.LogWarn("agent.model.retry", "agent", a.name, "attempt", attempt, "delay_ms", delay.Milliseconds(), "error", lastErr.Error())
			select {
			case <-runCtx.Done():
				return model.Outcome{}, runCtx.Err()
			case <-time.After(delay):
			}
		}

		callCtx, cancel := context.WithTimeout(runCtx.Context, a.modelTimeout)
		start := time.Now()
		outcome, err := a.gateway.Call(callCtx, req)
		cancel()
		if err == nil {
			runCtx.LogDebug("agent.model.call",
				"agent", a.name,
				"final", outcome.IsFinal(),
				"tool_calls", len(outcome.ToolCalls),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return outcome, nil
		}
		if model.IsFatal(err) {
			return model.Outcome{}, err
		}
		if runCtx.Err() != nil {
			return model.Outcome{}, runCtx.Err()
		}
		lastErr = err
	}

	return model.Outcome{}, fmt.Errorf("model unavailable after %d attempts: %w", a.maxModelAttempts, lastErr)
}

// buildRequest assembles the normalized gateway request from the current
// session snapshot. The schema description is appended to the system framing
// so providers without a structured-output mode still see the contract.
func (a *Agent) buildRequest(runCtx *core.RunContext) (model.Request, error) {
	instructions, err := a.instruction.Resolve(runCtx)
	if err != nil {
		return model.Request{}, fmt.Errorf("resolve instruction: %w", err)
	}
	if rs := a.validator.Schema(); !rs.IsZero() {
		instructions += "\n\nYour final reply must be a single JSON object with these fields:\n" + rs.Describe()
	}

	history, err := runCtx.History()
	if err != nil {
		return model.Request{}, err
	}

	tools := a.registry.List()
	defs := make([]model.Definition, len(tools))
	for i, t := range tools {
		defs[i] = model.Definition{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
	}

	return model.Request{
		Instructions:   instructions,
		Messages:       history,
		Tools:          defs,
		ResponseSchema: a.validator.Schema(),
	}, nil
}

// fail marks the session failed and reports the terminal result. Cancellation
// wins over failure bookkeeping: a cancelled turn leaves the session active.
func (a *Agent) fail(runCtx *core.RunContext, kind core.ErrorKind, cause error) (*Result, error) {
	if runCtx.Err() != nil {
		return nil, runCtx.Err()
	}
	if err := a.store.SetStatus(runCtx.Context, runCtx.SessionID, core.StatusFailed); err != nil {
		runCtx.LogError("agent.turn.fail.status", "agent", a.name, "session_id", runCtx.SessionID, "error", err.Error())
	}
	runCtx.LogError("agent.turn.failed",
		"agent", a.name,
		"session_id", runCtx.SessionID,
		"error_kind", string(kind),
		"error", cause.Error(),
	)
	return &Result{Status: StatusFailed, ErrorKind: kind, Err: cause}, nil
}

// repairPrompt renders a schema violation into the corrective user message
// sent during a REPAIR round.
func repairPrompt(v *schema.Violation) string {
	return "Your previous reply did not match the required response format: " +
		v.Error() +
		". Reply again with a single JSON object that satisfies the declared fields exactly."
}

// backoffDelay computes the capped exponential delay before retry 'attempt'
// (attempt >= 1).
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	if delay > cap || delay <= 0 {
		return cap
	}
	return delay
}
