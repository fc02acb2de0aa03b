package model

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/turnloop/turnloop/core"
)

// Step is one scripted reaction of a StubGateway: either an Outcome or an
// error to return.
type Step struct {
	Outcome Outcome
	Err     error
}

// StepToolCalls scripts a tool-call outcome.
func StepToolCalls(calls ...core.ToolCall) Step {
	return Step{Outcome: Outcome{ToolCalls: calls}}
}

// StepFinal scripts a final raw payload outcome.
func StepFinal(raw string) Step {
	return Step{Outcome: Outcome{Final: json.RawMessage(raw)}}
}

// StepErr scripts a call error (wrap with Transient / Fatal as needed).
func StepErr(err error) Step { return Step{Err: err} }

// StubGateway is a deterministic in-memory Gateway useful for tests and
// examples. Calls consume scripted steps in order; when the script is
// exhausted (or empty) the stub falls back to a response map keyed by the
// last user message content, mirroring how canned completions are usually
// scripted in tests. It records every request for later assertions.
type StubGateway struct {
	mu        sync.Mutex
	steps     []Step
	next      int
	responses map[string]Outcome
	requests  []Request
}

// NewStubGateway constructs a stub with an optional scripted step sequence.
func NewStubGateway(steps ...Step) *StubGateway {
	return &StubGateway{steps: steps, responses: make(map[string]Outcome)}
}

// AddFinal registers a deterministic final payload for a given user prompt,
// used when the scripted steps are exhausted.
func (g *StubGateway) AddFinal(prompt, raw string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.responses[prompt] = Outcome{Final: json.RawMessage(raw)}
}

// Append extends the scripted step sequence.
func (g *StubGateway) Append(steps ...Step) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.steps = append(g.steps, steps...)
}

// Call implements Gateway.
func (g *StubGateway) Call(ctx context.Context, req Request) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, Transient(err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)

	if g.next < len(g.steps) {
		step := g.steps[g.next]
		g.next++
		if step.Err != nil {
			return Outcome{}, step.Err
		}
		return step.Outcome, nil
	}

	if out, ok := g.responses[lastUserContent(req.Messages)]; ok {
		return out, nil
	}

	return Outcome{}, Fatal(fmt.Errorf("stub gateway: no scripted outcome for request %d", len(g.requests)))
}

// Info implements Gateway.
func (g *StubGateway) Info() Info {
	return Info{Name: "stub", Provider: "stub", SupportsTools: true}
}

// Requests returns a copy of every request seen so far.
func (g *StubGateway) Requests() []Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	reqs := make([]Request, len(g.requests))
	copy(reqs, g.requests)
	return reqs
}

// Calls returns how many times the gateway was invoked.
func (g *StubGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

func lastUserContent(msgs []core.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == core.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
