package config

import "github.com/turnloop/turnloop/agent"

// AgentOptions converts the turn limits into an agent option function, so a
// loaded configuration can be passed straight to agent.New or turnloop.New.
func (c *Config) AgentOptions() func(o *agent.Options) {
	return func(o *agent.Options) {
		o.MaxModelAttempts = c.Turn.MaxModelAttempts
		o.BackoffBase = c.Turn.BackoffBase
		o.BackoffCap = c.Turn.BackoffCap
		o.RepairAttempts = c.Turn.RepairAttempts
		o.MaxModelCalls = c.Turn.MaxModelCalls
		o.ModelTimeout = c.Turn.ModelTimeout
		o.ToolTimeout = c.Turn.ToolTimeout
		o.MaxParallelTools = c.Turn.MaxParallelTools
	}
}
