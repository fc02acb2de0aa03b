// Package core provides the foundational domain types, interfaces and execution
// contexts used by turnloop. It defines the core abstractions for:
//
//   - Messages (the append-only units of conversation history)
//   - Sessions (durable conversational containers keyed by an opaque id)
//   - Context (immutable caller-scoped values visible only to tool handlers)
//   - RunContext / ToolContext (scoped execution state for a turn and a tool call)
//   - The pluggable SessionStore persistence contract
//
// The package intentionally keeps implementation concerns (persistence backends,
// model gateways, the orchestration loop) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
