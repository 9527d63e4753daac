package tools

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoDef() Definition {
	return Definition{
		Name:         "echo",
		Description:  "Echo input",
		Capabilities: []string{"utility"},
		Parameters: []Parameter{
			{Name: "text", Type: "string", Description: "Input text", Required: true},
		},
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return params["text"], nil
		},
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDef()))

	def, ok := r.Get("echo")
	require.True(t, ok)
	assert.Equal(t, "Echo input", def.Description)
	assert.Equal(t, []string{"echo"}, r.List())
	assert.Equal(t, []string{"utility"}, r.Capabilities("echo"))

	schema, ok := r.Schema("echo")
	require.True(t, ok)
	assert.Equal(t, []string{"text"}, schema["required"])
}

func TestRegistry_Register_InvalidDefinition(t *testing.T) {
	noop := func(ctx context.Context, params map[string]interface{}) (interface{}, error) { return nil, nil }

	tests := []struct {
		name string
		def  Definition
	}{
		{name: "empty name", def: Definition{Description: "d", Handler: noop}},
		{name: "empty description", def: Definition{Name: "t", Handler: noop}},
		{name: "nil handler", def: Definition{Name: "t", Description: "d"}},
		{name: "bad parameter type", def: Definition{
			Name: "t", Description: "d", Handler: noop,
			Parameters: []Parameter{{Name: "x", Type: "float"}},
		}},
	}

	r := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, r.Register(tt.def))
		})
	}
}

func TestRegistry_Execute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(echoDef()))

	t.Run("success", func(t *testing.T) {
		res := r.Execute(context.Background(), "echo", map[string]interface{}{"text": "hi"})
		assert.True(t, res.Success)
		assert.Equal(t, "hi", res.Output)
	})

	t.Run("missing required parameter", func(t *testing.T) {
		res := r.Execute(context.Background(), "echo", nil)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "parameter validation failed")
	})

	t.Run("unknown parameter", func(t *testing.T) {
		res := r.Execute(context.Background(), "echo", map[string]interface{}{"text": "a", "extra": 1})
		assert.False(t, res.Success)
	})

	t.Run("unknown tool", func(t *testing.T) {
		res := r.Execute(context.Background(), "nope", nil)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "tool not found")
	})
}

func TestRegistry_Execute_HandlerFailures(t *testing.T) {
	r := NewRegistry(WithTimeout(50 * time.Millisecond))

	require.NoError(t, r.Register(Definition{
		Name: "fails", Description: "always fails",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return nil, errors.New("upstream unavailable")
		},
	}))
	require.NoError(t, r.Register(Definition{
		Name: "panics", Description: "always panics",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			panic("bad state")
		},
	}))
	require.NoError(t, r.Register(Definition{
		Name: "slow", Description: "blocks until cancelled",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}))

	res := r.Execute(context.Background(), "fails", nil)
	assert.False(t, res.Success)
	assert.Equal(t, "upstream unavailable", res.Error)

	res = r.Execute(context.Background(), "panics", nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "panicked")

	res = r.Execute(context.Background(), "slow", nil)
	assert.False(t, res.Success)
}

func TestRegistry_Execute_TruncatesOutput(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{
		Name: "big", Description: "large output",
		Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return strings.Repeat("x", maxOutputSize+10), nil
		},
	}))

	res := r.Execute(context.Background(), "big", nil)
	assert.True(t, res.Success)
	assert.True(t, res.Truncated)
	assert.True(t, strings.HasSuffix(res.Output.(string), "[output truncated]"))
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	assert.Equal(t, []string{"clock", "echo", "word_count"}, r.List())

	res := r.Execute(context.Background(), "word_count", map[string]interface{}{"text": "one two three"})
	require.True(t, res.Success)
	assert.Equal(t, 3, res.Output)
}
