package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedact(t *testing.T) {
	r := NewRedactor()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"anthropic key", "key sk-ant-REDACTED", "key " + redacted},
		{"openai key", "key sk-abcdefghijklmnopqrstuvwxyz0123", "key " + redacted},
		{"openai project key", "key sk-proj-abcdefghijklmnopqrstuvwxyz0123", "key " + redacted},
		{"bearer token", "Authorization: Bearer abc123.def456", "Authorization: " + redacted},
		{"api_key field", `{"api_key":"secret-value","model":"m"}`, `{` + redacted + `,"model":"m"}`},
		{"short sk- words survive", "ask-me anything", "ask-me anything"},
		{"plain text", "routed to research", "routed to research"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Redact(tt.input))
		})
	}
}

func TestAddPattern(t *testing.T) {
	r := NewRedactor()

	require.NoError(t, r.AddPattern(`tenant-[0-9]+`))
	assert.Equal(t, "id "+redacted, r.Redact("id tenant-42"))

	assert.Error(t, r.AddPattern(`[unclosed`))
}

func TestWrap(t *testing.T) {
	var buf bytes.Buffer
	w := NewRedactor().Wrap(&buf)

	line := []byte("token Bearer abcdef\n")
	n, err := w.Write(line)
	require.NoError(t, err)
	assert.Equal(t, len(line), n)
	assert.Equal(t, "token "+redacted+"\n", buf.String())
}
