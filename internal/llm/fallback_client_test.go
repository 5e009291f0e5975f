package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedClient struct {
	resp    Response
	err     error
	gotReq  Request
	called  bool
	streams chan StreamChunk
}

func (s *scriptedClient) Complete(ctx context.Context, req Request) (Response, error) {
	s.called = true
	s.gotReq = req
	return s.resp, s.err
}

func (s *scriptedClient) CompleteStream(ctx context.Context, req Request) (<-chan StreamChunk, error) {
	s.called = true
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.streams, nil
}

func TestFallbackPrefersPrimary(t *testing.T) {
	primary := &scriptedClient{resp: Response{Text: "primary"}}
	secondary := &scriptedClient{resp: Response{Text: "secondary"}}
	client := NewFallbackClient(primary, secondary, "fallback-model", nil)

	resp, err := client.Complete(context.Background(), Request{Model: "main-model"})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.False(t, secondary.called)
}

func TestFallbackUsesSecondaryOnError(t *testing.T) {
	primary := &scriptedClient{err: errors.New("vendor down")}
	secondary := &scriptedClient{resp: Response{Text: "secondary"}}
	client := NewFallbackClient(primary, secondary, "fallback-model", nil)

	resp, err := client.Complete(context.Background(), Request{
		Model: "main-model",
		Tools: []ToolDefinition{{Name: "create_ticket"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Text)
	// Fallback path drops tools and swaps the model id.
	assert.Nil(t, secondary.gotReq.Tools)
	assert.Equal(t, "fallback-model", secondary.gotReq.Model)
}

func TestFallbackWithoutSecondaryReturnsError(t *testing.T) {
	primary := &scriptedClient{err: errors.New("vendor down")}
	client := NewFallbackClient(primary, nil, "", nil)

	_, err := client.Complete(context.Background(), Request{Model: "m"})
	assert.Error(t, err)
}
