package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnloop/turnloop/core"
	"github.com/turnloop/turnloop/model"
	"github.com/turnloop/turnloop/schema"
	"github.com/turnloop/turnloop/session"
	"github.com/turnloop/turnloop/tool"
)

func librarianSchema() schema.ResponseSchema {
	return schema.New(
		schema.Field{Name: "encouragement_response", Type: schema.TypeString, Required: true},
		schema.Field{Name: "book_info", Type: schema.TypeObject},
		schema.Field{Name: "reason", Type: schema.TypeString},
	)
}

func bookListTool(t *testing.T, books ...string) tool.Tool {
	t.Helper()
	return tool.NewFunctionTool("get_book_list", "List available books", nil,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return map[string]any{"books": books}, nil
		},
	)
}

func borrowedBooksTool(t *testing.T, byUser map[string][]string) tool.Tool {
	t.Helper()
	return tool.NewFunctionTool("get_book_list_by_userid", "List borrowed books", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			books, ok := byUser[tc.Caller().StringValue("user_id")]
			if !ok {
				return "no borrowing history", nil
			}
			return books, nil
		},
	)
}

func newTestAgent(t *testing.T, gw model.Gateway, store core.SessionStore, extra ...func(o *Options)) *Agent {
	t.Helper()
	opts := append([]func(o *Options){
		func(o *Options) {
			o.SessionStore = store
			o.Instruction = NewInstructionFromText("You are a helpful librarian.")
			o.BackoffBase = time.Millisecond
			o.BackoffCap = 5 * time.Millisecond
		},
	}, extra...)
	a, err := New("Librarian", gw, librarianSchema(), opts...)
	require.NoError(t, err)
	return a
}

func TestAgent_ToolLoopHappyPath(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "get_book_list", Arguments: json.RawMessage(`{}`)}),
		model.StepFinal(`{
			"encouragement_response": "Your reading streak is inspiring!",
			"book_info": {"title": "Flow", "author": "Mihaly Csikszentmihalyi"},
			"reason": "It builds on your interest in focus."
		}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Tools = []tool.Tool{bookListTool(t, "Flow", "Influence")}
	})

	result, err := a.Invoke(context.Background(), "s1", "Recommend me a book", core.EmptyContext())
	require.NoError(t, err)
	require.Equal(t, StatusDone, result.Status)
	assert.Equal(t, "Your reading streak is inspiring!", result.Response.String("encouragement_response"))
	assert.Equal(t, "Flow", result.Response.Object("book_info")["title"])
	assert.Equal(t, 2, gw.Calls())

	// Trail: user, assistant tool call, tool result, assistant final.
	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, core.RoleUser, msgs[0].Role)
	assert.True(t, msgs[1].HasToolCalls())
	assert.Equal(t, core.RoleTool, msgs[2].Role)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, core.RoleAssistant, msgs[3].Role)

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, sess.Status)
}

func TestAgent_CallerContextReachesTools(t *testing.T) {
	borrowed := map[string][]string{
		"1": {"Psychology and Life - Richard Gerrig", "Influence - Robert Cialdini"},
		"2": {"Thinking, Fast and Slow - Daniel Kahneman"},
	}
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "get_book_list_by_userid"}),
		model.StepFinal(`{
			"encouragement_response": "Two books on human behavior already, well done!",
			"book_info": {"title": "Flow"},
			"reason": "You have not borrowed it yet."
		}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Tools = []tool.Tool{borrowedBooksTool(t, borrowed)}
	})

	caller := core.NewContext(map[string]any{"user_id": "1"})
	result, err := a.Invoke(context.Background(), "s1", "Which books have I borrowed?", caller)
	require.NoError(t, err)
	require.Equal(t, StatusDone, result.Status)

	// The tool result reflects user 1's borrow list and the recommendation is
	// not among the borrowed titles.
	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Contains(t, msgs[2].Content, "Psychology and Life")
	title, _ := result.Response.Object("book_info")["title"].(string)
	for _, b := range borrowed["1"] {
		assert.NotContains(t, b, title)
	}
}

func TestAgent_RepairThenSuccess(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepFinal(`{"wrong_field": true}`),
		model.StepFinal(`{"encouragement_response": "Fixed on the second try."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	require.Equal(t, StatusDone, result.Status)
	assert.Equal(t, "Fixed on the second try.", result.Response.String("encouragement_response"))
	assert.Equal(t, 2, gw.Calls())

	// The invalid payload and the corrective prompt stay in the trail.
	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[1].Content, "wrong_field")
	assert.Equal(t, core.RoleUser, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "did not match the required response format")
}

func TestAgent_RepairExhaustion(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepFinal(`{"bad": 1}`),
		model.StepFinal(`{"bad": 2}`),
		model.StepFinal(`{"bad": 3}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, core.ErrorKindSchemaViolation, result.ErrorKind)
	assert.Nil(t, result.Response)

	var violation *schema.Violation
	assert.ErrorAs(t, result.Err, &violation)

	// Initial attempt plus DefaultRepairAttempts repairs.
	assert.Equal(t, 1+DefaultRepairAttempts, gw.Calls())

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, sess.Status)
}

func TestAgent_ToolErrorCaptured(t *testing.T) {
	failing := tool.NewFunctionTool("get_book_list", "List available books", nil,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			return nil, errors.New("catalog service down")
		},
	)
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "get_book_list"}),
		model.StepFinal(`{"encouragement_response": "The catalog is unavailable, try later."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Tools = []tool.Tool{failing}
	})

	result, err := a.Invoke(context.Background(), "s1", "list books", core.EmptyContext())
	require.NoError(t, err)
	require.Equal(t, StatusDone, result.Status)

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.RoleTool, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "catalog service down")
}

func TestAgent_UnknownToolCaptured(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "no_such_tool"}),
		model.StepFinal(`{"encouragement_response": "Sorry, I could not look that up."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Contains(t, msgs[2].Content, "unknown tool")
}

func TestAgent_TransientRetryThenSuccess(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepErr(model.Transient(errors.New("rate limited"))),
		model.StepErr(model.Transient(errors.New("rate limited"))),
		model.StepFinal(`{"encouragement_response": "Third time lucky."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)
	assert.Equal(t, 3, gw.Calls())
}

func TestAgent_TransientRetriesExhausted(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepErr(model.Transient(errors.New("unavailable"))),
		model.StepErr(model.Transient(errors.New("unavailable"))),
		model.StepErr(model.Transient(errors.New("unavailable"))),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, core.ErrorKindModelUnavailable, result.ErrorKind)
	assert.Equal(t, 3, gw.Calls())

	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, sess.Status)
}

func TestAgent_FatalErrorNoRetry(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepErr(model.Fatal(errors.New("invalid api key"))),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, core.ErrorKindModelFatal, result.ErrorKind)
	assert.Equal(t, 1, gw.Calls())
}

func TestAgent_CallBudgetExceeded(t *testing.T) {
	// Every call requests another tool round, so the loop only stops at the
	// per-turn model call budget.
	gw := model.NewStubGateway()
	for i := 0; i < 10; i++ {
		gw.Append(model.StepToolCalls(core.ToolCall{ID: fmt.Sprintf("c%d", i), Name: "get_book_list"}))
	}
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.MaxModelCalls = 3
		o.Tools = []tool.Tool{bookListTool(t, "Flow")}
	})

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, core.ErrorKindCallBudgetExceeded, result.ErrorKind)
	assert.Equal(t, 3, gw.Calls())
}

func TestAgent_ParallelToolsOrdered(t *testing.T) {
	makeTool := func(name, reply string, delay time.Duration) tool.Tool {
		return tool.NewFunctionTool(name, name, nil,
			func(_ *core.ToolContext, _ map[string]any) (any, error) {
				time.Sleep(delay)
				return reply, nil
			},
		)
	}
	gw := model.NewStubGateway(
		model.StepToolCalls(
			core.ToolCall{ID: "c1", Name: "slow"},
			core.ToolCall{ID: "c2", Name: "medium"},
			core.ToolCall{ID: "c3", Name: "fast"},
		),
		model.StepFinal(`{"encouragement_response": "All tools answered."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Tools = []tool.Tool{
			makeTool("slow", "first", 30*time.Millisecond),
			makeTool("medium", "second", 15*time.Millisecond),
			makeTool("fast", "third", 0),
		}
	})

	result, err := a.Invoke(context.Background(), "s1", "run all", core.EmptyContext())
	require.NoError(t, err)
	require.Equal(t, StatusDone, result.Status)

	// Results appear in request order even though completion order differs.
	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, "first", msgs[2].Content)
	assert.Equal(t, "c2", msgs[3].ToolCallID)
	assert.Equal(t, "second", msgs[3].Content)
	assert.Equal(t, "c3", msgs[4].ToolCallID)
	assert.Equal(t, "third", msgs[4].Content)
}

func TestAgent_ToolTimeoutCaptured(t *testing.T) {
	sleepy := tool.NewFunctionTool("sleepy", "never returns in time", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			select {
			case <-tc.Context().Done():
				return nil, tc.Context().Err()
			case <-time.After(5 * time.Second):
				return "too late", nil
			}
		},
	)
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "sleepy"}),
		model.StepFinal(`{"encouragement_response": "That lookup timed out."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.ToolTimeout = 20 * time.Millisecond
		o.Tools = []tool.Tool{sleepy}
	})

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Contains(t, msgs[2].Content, "timed out")
}

func TestAgent_ToolPanicCaptured(t *testing.T) {
	panicking := tool.NewFunctionTool("panicky", "panics", nil,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			panic("boom")
		},
	)
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "panicky"}),
		model.StepFinal(`{"encouragement_response": "Something went wrong with that tool."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Tools = []tool.Tool{panicking}
	})

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)

	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Contains(t, msgs[2].Content, "panicked")
}

func TestAgent_CancellationLeavesSessionActive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	blocking := tool.NewFunctionTool("blocking", "waits for cancellation", nil,
		func(tc *core.ToolContext, _ map[string]any) (any, error) {
			cancel()
			<-tc.Context().Done()
			return nil, tc.Context().Err()
		},
	)
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "blocking"}),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Tools = []tool.Tool{blocking}
	})

	result, err := a.Invoke(ctx, "s1", "hello", core.EmptyContext())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)

	sess, lerr := store.Load(context.Background(), "s1")
	require.NoError(t, lerr)
	assert.Equal(t, core.StatusActive, sess.Status)
}

func TestAgent_RequestCarriesInstructionAndSchema(t *testing.T) {
	gw := model.NewStubGateway(model.StepFinal(`{"encouragement_response": "ok"}`))
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Instruction = NewInstructionFromText("You are a librarian.")
		o.Tools = []tool.Tool{bookListTool(t, "Flow")}
	})

	_, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)

	reqs := gw.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "You are a librarian.")
	assert.Contains(t, reqs[0].Instructions, "encouragement_response")
	require.Len(t, reqs[0].Tools, 1)
	assert.Equal(t, "get_book_list", reqs[0].Tools[0].Name)
	assert.False(t, reqs[0].ResponseSchema.IsZero())
}

func TestAgent_MultiTurnHistoryAccumulates(t *testing.T) {
	gw := model.NewStubGateway(
		model.StepFinal(`{"encouragement_response": "First answer."}`),
		model.StepFinal(`{"encouragement_response": "Second answer."}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	_, err := a.Invoke(context.Background(), "s1", "first", core.EmptyContext())
	require.NoError(t, err)
	_, err = a.Invoke(context.Background(), "s1", "second", core.EmptyContext())
	require.NoError(t, err)

	// Second request sees the full prior history.
	reqs := gw.Requests()
	require.Len(t, reqs, 2)
	assert.Len(t, reqs[0].Messages, 1)
	assert.Len(t, reqs[1].Messages, 3)

	// The second turn reactivated the completed session before finishing.
	sess, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, sess.Status)
	assert.Equal(t, 4, sess.Len())
}

func TestAgent_ConcurrentSessionsIsolated(t *testing.T) {
	gw := model.NewStubGateway()
	gw.AddFinal("from a", `{"encouragement_response": "answer a"}`)
	gw.AddFinal("from b", `{"encouragement_response": "answer b"}`)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store)

	var wg sync.WaitGroup
	results := make(map[string]*Result, 2)
	var mu sync.Mutex
	for _, tc := range []struct{ sid, input string }{{"a", "from a"}, {"b", "from b"}} {
		wg.Add(1)
		go func(sid, input string) {
			defer wg.Done()
			result, err := a.Invoke(context.Background(), sid, input, core.EmptyContext())
			require.NoError(t, err)
			mu.Lock()
			results[sid] = result
			mu.Unlock()
		}(tc.sid, tc.input)
	}
	wg.Wait()

	assert.Equal(t, "answer a", results["a"].Response.String("encouragement_response"))
	assert.Equal(t, "answer b", results["b"].Response.String("encouragement_response"))

	msgsA, err := store.Messages(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, msgsA, 2)
	assert.Equal(t, "from a", msgsA[0].Content)
}

func TestNew_DuplicateToolFailsStartup(t *testing.T) {
	_, err := New("dup", model.NewStubGateway(), librarianSchema(), func(o *Options) {
		o.SessionStore = session.NewInMemoryStore()
		o.Tools = []tool.Tool{bookListTool(t, "a"), bookListTool(t, "b")}
	})
	assert.ErrorIs(t, err, tool.ErrDuplicateTool)
}

func TestNew_RequiresGatewayAndStore(t *testing.T) {
	_, err := New("x", nil, librarianSchema(), func(o *Options) {
		o.SessionStore = session.NewInMemoryStore()
	})
	assert.Error(t, err)

	_, err = New("x", model.NewStubGateway(), librarianSchema())
	assert.Error(t, err)
}

func TestBackoffDelay(t *testing.T) {
	base := 200 * time.Millisecond
	cap := 5 * time.Second

	assert.Equal(t, 200*time.Millisecond, backoffDelay(base, cap, 1))
	assert.Equal(t, 400*time.Millisecond, backoffDelay(base, cap, 2))
	assert.Equal(t, 800*time.Millisecond, backoffDelay(base, cap, 3))
	assert.Equal(t, cap, backoffDelay(base, cap, 10))
	assert.Equal(t, cap, backoffDelay(base, cap, 63))
}

func TestAgent_AvailabilityFilterScenario(t *testing.T) {
	type book struct {
		Title     string `json:"title"`
		Available bool   `json:"available"`
	}
	catalog := []book{
		{Title: "Psychology and Life", Available: true},
		{Title: "Influence", Available: true},
		{Title: "Thinking, Fast and Slow", Available: false},
		{Title: "The Willpower Instinct", Available: true},
		{Title: "Flow", Available: true},
	}
	listTool := tool.NewFunctionTool("get_book_list", "List available books", nil,
		func(_ *core.ToolContext, _ map[string]any) (any, error) {
			available := make([]book, 0, len(catalog))
			for _, b := range catalog {
				if b.Available {
					available = append(available, b)
				}
			}
			return map[string]any{"books": available}, nil
		},
	)
	gw := model.NewStubGateway(
		model.StepToolCalls(core.ToolCall{ID: "c1", Name: "get_book_list", Arguments: json.RawMessage(`{}`)}),
		model.StepFinal(`{
			"encouragement_response": "A wonderful shelf awaits you!",
			"book_info": {"title": "Flow"},
			"reason": "Flow pairs well with your interest in focus."
		}`),
	)
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Tools = []tool.Tool{listTool}
	})

	result, err := a.Invoke(context.Background(), "s1", "list available books", core.EmptyContext())
	require.NoError(t, err)
	require.Equal(t, StatusDone, result.Status)

	// The tool result lists the four available titles and filters the
	// unavailable one out.
	msgs, err := store.Messages(context.Background(), "s1")
	require.NoError(t, err)
	var payload struct {
		Books []book `json:"books"`
	}
	require.NoError(t, json.Unmarshal([]byte(msgs[2].Content), &payload))
	require.Len(t, payload.Books, 4)
	for _, b := range payload.Books {
		assert.NotEqual(t, "Thinking, Fast and Slow", b.Title)
	}

	assert.NotEmpty(t, result.Response.Object("book_info"))
	assert.NotEmpty(t, result.Response.String("reason"))
}

func TestAgent_DeterministicReplay(t *testing.T) {
	run := func() (*Result, []core.Message) {
		gw := model.NewStubGateway(
			model.StepToolCalls(core.ToolCall{ID: "c1", Name: "get_book_list", Arguments: json.RawMessage(`{}`)}),
			model.StepFinal(`{
				"encouragement_response": "Great choices so far!",
				"book_info": {"title": "Flow"},
				"reason": "You have not read it yet."
			}`),
		)
		store := session.NewInMemoryStore()
		a := newTestAgent(t, gw, store, func(o *Options) {
			o.Tools = []tool.Tool{bookListTool(t, "Flow", "Influence")}
		})
		result, err := a.Invoke(context.Background(), "s1", "recommend a book", core.EmptyContext())
		require.NoError(t, err)
		msgs, err := store.Messages(context.Background(), "s1")
		require.NoError(t, err)
		return result, msgs
	}

	first, firstMsgs := run()
	second, secondMsgs := run()

	// Identical inputs against identical deterministic collaborators yield
	// identical responses and identical message sequences (ids and timestamps
	// aside).
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Response, second.Response)
	require.Equal(t, len(firstMsgs), len(secondMsgs))
	for i := range firstMsgs {
		assert.Equal(t, firstMsgs[i].Role, secondMsgs[i].Role, "message %d", i)
		assert.Equal(t, firstMsgs[i].Content, secondMsgs[i].Content, "message %d", i)
		assert.Equal(t, firstMsgs[i].ToolCallID, secondMsgs[i].ToolCallID, "message %d", i)
		assert.Equal(t, len(firstMsgs[i].ToolCalls), len(secondMsgs[i].ToolCalls), "message %d", i)
	}
}

func TestAgent_InstructionFailureIsInternal(t *testing.T) {
	gw := model.NewStubGateway(model.StepFinal(`{"encouragement_response": "unreached"}`))
	store := session.NewInMemoryStore()
	a := newTestAgent(t, gw, store, func(o *Options) {
		o.Instruction = NewInstructionFromFunc(func(*core.RunContext) (string, error) {
			return "", errors.New("prompt store unreachable")
		})
	})

	result, err := a.Invoke(context.Background(), "s1", "hello", core.EmptyContext())
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, core.ErrorKindInternal, result.ErrorKind)
	assert.Equal(t, 0, gw.Calls())
}
