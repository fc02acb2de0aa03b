// Package turnloop provides a high-level façade over the agent orchestration
// core (turn state machine, sessions, tools & structured output) enabling
// rapid construction of tool-augmented conversational agents. Most
// applications interact with this package by:
//  1. Creating a Loop via New() with a model gateway and response schema
//     (optionally overriding the default in-memory session store)
//  2. Registering tools and instruction framing through agent options
//  3. Running complete turns with Invoke
//
// The façade delegates orchestration to agent.Agent while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable session store
// and a structured logger.
package turnloop

import (
	"context"

	"github.com/turnloop/turnloop/agent"
	"github.com/turnloop/turnloop/core"
	"github.com/turnloop/turnloop/logging"
	"github.com/turnloop/turnloop/model"
	"github.com/turnloop/turnloop/schema"
	"github.com/turnloop/turnloop/session"
)

// Options configures the Loop instance.
type Options struct {
	// SessionStore defaults to an in-memory implementation if not provided.
	SessionStore core.SessionStore

	// Logger defaults to a NoOp logger if nil.
	Logger logging.Logger

	// AgentOptions are applied to the underlying agent (instruction, tools,
	// retry limits, timeouts).
	AgentOptions []func(o *agent.Options)
}

// Loop is the high-level façade aggregating the underlying agent and services.
type Loop struct {
	opts  Options
	agent *agent.Agent
}

// New creates a new Loop with optional overrides. Any unset service is
// initialized with an in-memory implementation.
func New(name string, gateway model.Gateway, responseSchema schema.ResponseSchema, optFns ...func(o *Options)) (*Loop, error) {
	opts := Options{
		SessionStore: session.NewInMemoryStore(),
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	agentOpts := append([]func(o *agent.Options){
		func(o *agent.Options) {
			o.SessionStore = opts.SessionStore
			o.Logger = opts.Logger
		},
	}, opts.AgentOptions...)

	a, err := agent.New(name, gateway, responseSchema, agentOpts...)
	if err != nil {
		return nil, err
	}

	return &Loop{opts: opts, agent: a}, nil
}

// Agent exposes the underlying agent for introspection.
func (l *Loop) Agent() *agent.Agent { return l.agent }

// Invoke runs one complete turn for the given session and returns its
// terminal result. callerCtx values are visible to tool handlers only; pass
// core.EmptyContext() when no per-caller data is needed.
func (l *Loop) Invoke(ctx context.Context, sessionID, userInput string, callerCtx core.Context) (*agent.Result, error) {
	return l.agent.Invoke(ctx, sessionID, userInput, callerCtx)
}
