package turnloop

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnloop/turnloop/agent"
	"github.com/turnloop/turnloop/core"
	"github.com/turnloop/turnloop/model"
	"github.com/turnloop/turnloop/schema"
	"github.com/turnloop/turnloop/tool"
)

func TestLoop_EndToEnd(t *testing.T) {
	borrowed := map[string][]string{"1": {"Influence - Robert Cialdini"}}

	lookup := tool.NewFunctionTool("get_book_list_by_userid", "List borrowed books", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			return borrowed[tc.Caller().StringValue("user_id")], nil
		},
	)

	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "get_book_list_by_userid", Arguments: json.RawMessage(`{}`)}),
		model.StepFinal(`{
			"encouragement_response": "Influence is a great foundation, keep it up!",
			"book_info": {"title": "Flow"},
			"reason": "A natural next step after persuasion."
		}`),
	)

	responseSchema := schema.New(
		schema.Field{Name: "encouragement_response", Type: schema.TypeString, Required: true},
		schema.Field{Name: "book_info", Type: schema.TypeObject},
		schema.Field{Name: "reason", Type: schema.TypeString},
	)

	loop, err := New("Librarian", gw, responseSchema, func(o *Options) {
		o.AgentOptions = append(o.AgentOptions, func(ao *agent.Options) {
			ao.Tools = []tool.Tool{lookup}
		})
	})
	require.NoError(t, err)

	caller := core.NewContext(map[string]any{"user_id": "1"})
	result, err := loop.Invoke(context.Background(), "sess1", "Which books have I borrowed?", caller)
	require.NoError(t, err)

	require.Equal(t, agent.StatusDone, result.Status)
	assert.Equal(t, "Influence is a great foundation, keep it up!", result.Response.String("encouragement_response"))
	assert.Equal(t, "Flow", result.Response.Object("book_info")["title"])
	assert.Equal(t, "Librarian", loop.Agent().Name())
}

func TestNew_PropagatesSetupErrors(t *testing.T) {
	_, err := New("broken", nil, schema.New())
	assert.Error(t, err)
}
