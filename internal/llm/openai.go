package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	completionsPath    = "/chat/completions"
	embeddingsPath     = "/embeddings"
	defaultHTTPTimeout = 60 * time.Second

	// maxResponseBytes caps provider response reads.
	maxResponseBytes = 4 << 20
)

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey        string
	Model         string // chat completion model, e.g. "gpt-4.1"
	EmbedderModel string // embedding model, e.g. "text-embedding-3-small"
	BaseURL       string // optional, defaults to the public API
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// OpenAI adapts the OpenAI HTTP API to the Client and Embedder interfaces.
// Safe for concurrent use.
type OpenAI struct {
	apiKey        string
	model         string
	embedderModel string
	baseURL       string
	httpClient    *http.Client
	logger        *slog.Logger
}

var (
	_ Client   = (*OpenAI)(nil)
	_ Embedder = (*OpenAI)(nil)
)

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("new openai adapter: api key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, errors.New("new openai adapter: model is required")
	}
	embedderModel := strings.TrimSpace(cfg.EmbedderModel)
	if embedderModel == "" {
		return nil, errors.New("new openai adapter: embedder model is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAI{
		apiKey:        apiKey,
		model:         model,
		embedderModel: embedderModel,
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

// Complete sends the conversation and tool declarations to the chat
// completions endpoint and returns the assistant's message.
func (o *OpenAI) Complete(ctx context.Context, messages []Message, tools []ToolDef) (Message, error) {
	payload := chatCompletionRequest{
		Model:    o.model,
		Messages: make([]chatMessage, len(messages)),
		Tools:    make([]chatTool, len(tools)),
	}
	for i, m := range messages {
		payload.Messages[i] = toChatMessage(m)
	}
	for i, t := range tools {
		payload.Tools[i] = chatTool{
			Type: "function",
			Function: chatToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
				Strict:      true,
			},
		}
	}

	body, err := o.post(ctx, "completion", completionsPath, payload)
	if err != nil {
		return Message{}, err
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Message{}, &ProviderError{Op: "completion", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return Message{}, &ProviderError{Op: "completion", Err: errors.New("response has no choices")}
	}

	return fromChatMessage(parsed.Choices[0].Message), nil
}

// Embed returns the embedding vector for a single text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in input order.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := o.post(ctx, "embedding", embeddingsPath, embeddingRequest{
		Model: o.embedderModel,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &ProviderError{Op: "embedding", Err: fmt.Errorf("decoding response: %w", err)}
	}
	if len(parsed.Data) != len(texts) {
		return nil, &ProviderError{Op: "embedding", Err: fmt.Errorf("got %d vectors for %d inputs", len(parsed.Data), len(texts))}
	}

	// The API documents index-ordered output; sort to be safe.
	sort.Slice(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})

	vectors := make([][]float64, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// post encodes payload, executes the request and returns the raw body.
// Any transport or non-2xx failure is wrapped in a ProviderError.
func (o *OpenAI) post(ctx context.Context, op, path string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: fmt.Errorf("encoding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, &ProviderError{Op: op, Err: fmt.Errorf("building request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("reading response: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		o.logger.Warn("provider request failed", "op", op, "status", resp.StatusCode)
		return nil, &ProviderError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("body: %s", truncateForLog(body))}
	}

	return body, nil
}

func truncateForLog(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// Wire types for the chat completions endpoint.

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Tools    []chatTool    `json:"tools,omitempty"`
}

type chatCompletionResponse struct {
	Choices []chatChoice `json:"choices"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Strict      bool           `json:"strict,omitempty"`
}

type chatToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function chatToolCallFunction `json:"function"`
}

type chatToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

func toChatMessage(m Message) chatMessage {
	cm := chatMessage{
		Role:       string(m.Role),
		Content:    m.Content,
		ToolCallID: m.ToolCallID,
	}
	for _, tc := range m.ToolCalls {
		arguments := "{}"
		if len(tc.Arguments) > 0 {
			arguments = string(tc.Arguments)
		}
		cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: chatToolCallFunction{
				Name:      tc.Name,
				Arguments: arguments,
			},
		})
	}
	return cm
}

func fromChatMessage(cm chatMessage) Message {
	m := Message{
		Role:    RoleAssistant,
		Content: cm.Content,
	}
	for _, tc := range cm.ToolCalls {
		args := json.RawMessage(tc.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		m.ToolCalls = append(m.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return m
}

// Wire types for the embeddings endpoint.

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

type embeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}
