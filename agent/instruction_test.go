package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turnloop/turnloop/core"
	"github.com/turnloop/turnloop/session"
)

func newTestRunContext(t *testing.T) *core.RunContext {
	t.Helper()
	return core.NewRunContext(
		context.Background(), "sess-9", "turn-4", "Librarian", "recommend a book",
		core.EmptyContext(), session.NewInMemoryStore(), 0, nil,
	)
}

func TestInstruction_Static(t *testing.T) {
	i := NewInstructionFromText("You are a librarian.")
	assert.True(t, i.IsStatic())

	text, err := i.Resolve(newTestRunContext(t))
	require.NoError(t, err)
	assert.Equal(t, "You are a librarian.", text)
}

func TestInstruction_FromFunc(t *testing.T) {
	i := NewInstructionFromFunc(func(rc *core.RunContext) (string, error) {
		return "agent " + rc.AgentName, nil
	})
	assert.False(t, i.IsStatic())

	text, err := i.Resolve(newTestRunContext(t))
	require.NoError(t, err)
	assert.Equal(t, "agent Librarian", text)
}

func TestInstruction_FuncError(t *testing.T) {
	i := NewInstructionFromFunc(func(*core.RunContext) (string, error) {
		return "", errors.New("no instruction available")
	})

	_, err := i.Resolve(newTestRunContext(t))
	assert.Error(t, err)
}

func TestInstruction_Template(t *testing.T) {
	i := NewInstructionFromTemplate("Session {{.session_id}}: answer {{upper .user_input}}")

	text, err := i.Resolve(newTestRunContext(t))
	require.NoError(t, err)
	assert.Equal(t, "Session sess-9: answer RECOMMEND A BOOK", text)
}

func TestInstruction_TemplatePlainTextPassthrough(t *testing.T) {
	i := NewInstructionFromTemplate("no placeholders here")

	text, err := i.Resolve(newTestRunContext(t))
	require.NoError(t, err)
	assert.Equal(t, "no placeholders here", text)
}
