package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContext_Immutable(t *testing.T) {
	src := map[string]any{"user_id": "1", "tenant": "acme"}
	ctx := NewContext(src)

	// Mutating the source map after construction must not leak in.
	src["user_id"] = "2"
	src["extra"] = true

	assert.Equal(t, "1", ctx.StringValue("user_id"))
	_, ok := ctx.Value("extra")
	assert.False(t, ok)
	assert.Equal(t, 2, ctx.Keys())
}

func TestContext_StringValue(t *testing.T) {
	ctx := NewContext(map[string]any{"user_id": "42", "count": 7})

	assert.Equal(t, "42", ctx.StringValue("user_id"))
	assert.Equal(t, "", ctx.StringValue("count"))
	assert.Equal(t, "", ctx.StringValue("missing"))
}

func TestEmptyContext(t *testing.T) {
	ctx := EmptyContext()
	assert.Equal(t, 0, ctx.Keys())
	_, ok := ctx.Value("anything")
	assert.False(t, ok)
}
