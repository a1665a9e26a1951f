// Package llm defines the boundary to the external language-model and
// embedding providers.
//
// The dialogue engine owns the tool-calling loop, so the provider surface is
// deliberately thin: one completion call over the full conversation plus tool
// declarations, and one embedding call. Retry policy, if any, belongs to the
// caller's transport, not this layer.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model. The ID is opaque,
// chosen by the provider, and must be echoed back unchanged on the matching
// tool-result message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// Message is one entry of the conversation history.
//
// The history is append-only: entries are never removed or reordered, and the
// full sequence is sent to the provider on every completion call. A tool-call
// assistant message is always followed by one tool-result message per call,
// carrying the same call ID, before any further user or assistant entry.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall // assistant messages only
	ToolCallID string     // tool-result messages only
}

// IsToolCall reports whether the message requests at least one tool call.
func (m Message) IsToolCall() bool {
	return len(m.ToolCalls) > 0
}

// SystemMessage builds the single system instruction entry.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user entry.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds a plain-text assistant entry.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResultMessage builds the result entry for a tool call.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: content}
}

// ToolDef declares a callable tool to the model. Parameters is a strict JSON
// schema object: all fields required, no additional properties accepted.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Client is the model-completion service boundary. Given the conversation
// history and the advertised tools it returns either a tool-call message or a
// plain-text assistant message.
type Client interface {
	Complete(ctx context.Context, messages []Message, tools []ToolDef) (Message, error)
}

// Embedder is the embedding service boundary. EmbedBatch returns one vector
// per input, preserving input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// ProviderError reports an unreachable upstream service or a malformed
// provider response. Callers degrade gracefully: the dialogue engine falls
// back to a fixed apology, the retrieval engine to a fixed "couldn't process"
// message. A ProviderError never surfaces to the end user as-is.
type ProviderError struct {
	Op     string // "completion" or "embedding"
	Status int    // HTTP status, 0 when the request never completed
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("provider %s failed (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
