// Package testutil provides deterministic fakes for the model and embedder
// boundaries so engine and retrieval tests run without network access.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/threadcart/threadcart/internal/llm"
)

// MockClient is a scripted llm.Client. Steps enqueued with the Enqueue
// helpers are consumed one per Complete call; when the queue is empty,
// pattern rules are matched against the last user message, and finally the
// fallback text is returned.
//
// Thread-safe for concurrent use.
type MockClient struct {
	mu       sync.Mutex
	queue    []mockStep
	rules    []mockRule
	fallback string
	calls    []CompleteCall
}

type mockStep struct {
	msg llm.Message
	err error
}

type mockRule struct {
	pattern  string // substring match, lowercased
	response string
}

// CompleteCall records the arguments of one Complete invocation.
type CompleteCall struct {
	Messages []llm.Message
	Tools    []llm.ToolDef
}

// NewMockClient creates a mock with the given fallback response.
func NewMockClient(fallback string) *MockClient {
	return &MockClient{fallback: fallback}
}

// EnqueueText queues a plain assistant reply.
func (m *MockClient) EnqueueText(text string) {
	m.enqueue(mockStep{msg: llm.AssistantMessage(text)})
}

// EnqueueToolCall queues an assistant message requesting a single tool call.
// args is marshaled to JSON as the call arguments.
func (m *MockClient) EnqueueToolCall(callID, tool string, args map[string]any) {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("testutil: unmarshalable tool args: %v", err))
	}
	m.enqueue(mockStep{msg: llm.Message{
		Role: llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{
			ID:        callID,
			Name:      tool,
			Arguments: raw,
		}},
	}})
}

// EnqueueError queues a model failure.
func (m *MockClient) EnqueueError(err error) {
	m.enqueue(mockStep{err: err})
}

func (m *MockClient) enqueue(s mockStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, s)
}

// AddResponse registers a pattern rule used when the queue is empty: if the
// last user message contains pattern (case-insensitive), response is
// returned. Rules are checked in registration order; first match wins.
func (m *MockClient) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), response: response})
}

// Calls returns a copy of all recorded Complete invocations.
func (m *MockClient) Calls() []CompleteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]CompleteCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Complete implements llm.Client.
func (m *MockClient) Complete(_ context.Context, messages []llm.Message, tools []llm.ToolDef) (llm.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, CompleteCall{
		Messages: append([]llm.Message(nil), messages...),
		Tools:    append([]llm.ToolDef(nil), tools...),
	})

	if len(m.queue) > 0 {
		step := m.queue[0]
		m.queue = m.queue[1:]
		if step.err != nil {
			return llm.Message{}, step.err
		}
		return step.msg, nil
	}

	userText := strings.ToLower(lastUserMessage(messages))
	for _, rule := range m.rules {
		if strings.Contains(userText, rule.pattern) {
			return llm.AssistantMessage(rule.response), nil
		}
	}
	return llm.AssistantMessage(m.fallback), nil
}

func lastUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// MockEmbedder is a deterministic llm.Embedder. Unknown content hashes to a
// stable unit vector via SHA-256; explicit vectors can be registered for
// precise cosine-similarity control, and a forced error simulates provider
// failure.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	dim     int
	err     error
}

// NewMockEmbedder creates a mock embedder producing vectors of the given
// dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{vectors: make(map[string][]float64), dim: dim}
}

// SetVector registers an explicit vector for a content string.
func (e *MockEmbedder) SetVector(content string, vec []float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// SetError makes every subsequent call fail with err. Pass nil to clear.
func (e *MockEmbedder) SetError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Embed implements llm.Embedder.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch implements llm.Embedder.
func (e *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}

	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			vectors[i] = v
			continue
		}
		vectors[i] = deterministicVector(text, e.dim)
	}
	return vectors, nil
}

// deterministicVector generates a normalized vector from content using
// SHA-256. The same content always produces the same vector.
func deterministicVector(content string, dim int) []float64 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float64, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		vec[i] = (float64(bits)/float64(math.MaxUint32))*2 - 1
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
