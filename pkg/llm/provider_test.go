package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		want    string
		wantErr bool
	}{
		{name: "scripted", cfg: ProviderConfig{Provider: "scripted"}, want: "scripted"},
		{name: "empty defaults to scripted", cfg: ProviderConfig{}, want: "scripted"},
		{name: "anthropic", cfg: ProviderConfig{Provider: "anthropic", APIKey: "k"}, want: "anthropic"},
		{name: "openai", cfg: ProviderConfig{Provider: "openai", APIKey: "k"}, want: "openai"},
		{name: "anthropic without key", cfg: ProviderConfig{Provider: "anthropic"}, wantErr: true},
		{name: "openai without key", cfg: ProviderConfig{Provider: "openai"}, wantErr: true},
		{name: "unknown", cfg: ProviderConfig{Provider: "gemini"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}
}

func TestScripted_QueueThenEcho(t *testing.T) {
	s := NewScripted(Response{Content: "first"})
	s.EnqueueError(errors.New("boom"))

	ctx := context.Background()
	req := Request{Messages: []Message{{Role: "user", Content: "hello"}}}

	resp, err := s.Call(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "first", resp.Content)

	_, err = s.Call(ctx, req)
	assert.EqualError(t, err, "boom")

	resp, err = s.Call(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)

	assert.Len(t, s.Calls(), 3)
}

func TestScripted_Responder(t *testing.T) {
	s := NewScripted()
	s.SetResponder(func(r Request) (*Response, error) {
		return &Response{Content: r.Model}, nil
	})

	resp, err := s.Call(context.Background(), Request{Model: "m1"})
	require.NoError(t, err)
	assert.Equal(t, "m1", resp.Content)
}

func TestScripted_CancelledContext(t *testing.T) {
	s := NewScripted(Response{Content: "never"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Call(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, s.Calls())
}

func TestScripted_Ping(t *testing.T) {
	s := NewScripted()
	assert.NoError(t, s.Ping(context.Background()))

	s.SetPingError(errors.New("down"))
	assert.EqualError(t, s.Ping(context.Background()), "down")
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(errors.New("HTTP 429 Too Many Requests")))
	assert.True(t, IsRetryable(errors.New("upstream 503")))
	assert.False(t, IsRetryable(errors.New("invalid api key")))
}
