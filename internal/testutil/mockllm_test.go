package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadcart/threadcart/internal/llm"
)

func TestMockClientConsumesQueueInOrder(t *testing.T) {
	m := NewMockClient("fallback")
	m.EnqueueText("first")
	m.EnqueueError(errors.New("boom"))
	m.EnqueueToolCall("call_1", "get_t_shirt", map[string]any{"name": "tee"})

	msgs := []llm.Message{llm.UserMessage("hi")}

	reply, err := m.Complete(context.Background(), msgs, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", reply.Content)

	_, err = m.Complete(context.Background(), msgs, nil)
	assert.EqualError(t, err, "boom")

	reply, err = m.Complete(context.Background(), msgs, nil)
	require.NoError(t, err)
	require.True(t, reply.IsToolCall())
	assert.Equal(t, "get_t_shirt", reply.ToolCalls[0].Name)
	assert.JSONEq(t, `{"name":"tee"}`, string(reply.ToolCalls[0].Arguments))

	// Queue drained; the fallback takes over.
	reply, err = m.Complete(context.Background(), msgs, nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", reply.Content)
}

func TestMockClientPatternRules(t *testing.T) {
	m := NewMockClient("fallback")
	m.AddResponse("cart", "about your cart")
	m.AddResponse("order", "about your orders")

	reply, err := m.Complete(context.Background(),
		[]llm.Message{llm.UserMessage("show my CART please")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "about your cart", reply.Content)

	// First registered match wins even when both patterns occur.
	reply, err = m.Complete(context.Background(),
		[]llm.Message{llm.UserMessage("order the cart contents")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "about your cart", reply.Content)
}

func TestMockClientRecordsCalls(t *testing.T) {
	m := NewMockClient("ok")
	tools := []llm.ToolDef{{Name: "get_t_shirt"}}

	_, err := m.Complete(context.Background(), []llm.Message{llm.UserMessage("hi")}, tools)
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "get_t_shirt", calls[0].Tools[0].Name)
	assert.Equal(t, "hi", calls[0].Messages[0].Content)
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(8)

	v1, err := e.Embed(context.Background(), "same text")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "same text")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	other, err := e.Embed(context.Background(), "different text")
	require.NoError(t, err)
	assert.NotEqual(t, v1, other)

	var norm float64
	for _, x := range v1 {
		norm += x * x
	}
	assert.InDelta(t, 1.0, norm, 1e-9, "hashed vectors are unit length")
}

func TestMockEmbedderExplicitVectorAndError(t *testing.T) {
	e := NewMockEmbedder(3)
	e.SetVector("pinned", []float64{1, 0, 0})

	vecs, err := e.EmbedBatch(context.Background(), []string{"pinned", "hashed"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, vecs[0])
	assert.Len(t, vecs[1], 3)

	e.SetError(errors.New("provider down"))
	_, err = e.Embed(context.Background(), "anything")
	assert.EqualError(t, err, "provider down")

	e.SetError(nil)
	_, err = e.Embed(context.Background(), "anything")
	assert.NoError(t, err)
}
