// Package chat owns one conversation's turn loop: user message in, repeated
// model-call / tool-call cycles, final reply plus side-effect flags out.
package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/threadcart/threadcart/internal/llm"
	"github.com/threadcart/threadcart/internal/tools"
)

// Apology is the fixed reply when a turn cannot produce a plain-text model
// response: model failure, or a tool loop that never settles.
const Apology = "I'm sorry, I couldn't process your request."

// RefreshCartMarker is appended to a reply whenever a cart-mutating tool ran
// during the turn; clients watch for it and refetch the cart.
const RefreshCartMarker = "[REFRESH_CART]"

// DefaultMaxToolCycles bounds the model-call/tool-call loop per turn.
const DefaultMaxToolCycles = 8

// cartMutatingTools mark the turn's side-effect flag when dispatched. This
// is an explicit table, not inference from tool results, so the precedence
// is testable independent of wording.
var cartMutatingTools = map[string]bool{
	"add_to_cart":      true,
	"update_cart_item": true,
	"delete_cart_item": true,
	"place_order":      true,
}

// Turn is the outcome of processing one user message.
type Turn struct {
	Reply       string
	Actions     []Action
	CartUpdated bool
}

// Config assembles an Engine.
type Config struct {
	Client        llm.Client
	Registry      *tools.Registry
	MaxToolCycles int // <= 0 means DefaultMaxToolCycles
	Logger        *slog.Logger
}

// Engine drives one conversation. It exclusively owns its append-only
// history; the session registry guarantees at most one in-flight turn per
// engine, so Engine itself is not safe for concurrent use.
type Engine struct {
	client    llm.Client
	registry  *tools.Registry
	maxCycles int
	logger    *slog.Logger

	history []llm.Message
}

// NewEngine creates an engine with the system prompt as the first history
// entry.
func NewEngine(cfg Config) *Engine {
	maxCycles := cfg.MaxToolCycles
	if maxCycles <= 0 {
		maxCycles = DefaultMaxToolCycles
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client:    cfg.Client,
		registry:  cfg.Registry,
		maxCycles: maxCycles,
		logger:    logger,
		history:   []llm.Message{llm.SystemMessage(systemPrompt)},
	}
}

// ProcessTurn runs one dialogue turn. The caller token is threaded into
// auth-requiring tool calls for this turn only; it is never stored.
//
// Degraded outcomes (model failure, tool-cycle overflow) end the turn with
// the fixed apology and no actions rather than an error. The only error
// returned is the context's, when the caller is already gone.
func (e *Engine) ProcessTurn(ctx context.Context, userText, callerToken string) (*Turn, error) {
	e.history = append(e.history, llm.UserMessage(userText))
	cartUpdated := false

	for cycle := 0; cycle < e.maxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := e.client.Complete(ctx, e.history, e.registry.Defs())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.logger.Error("model call failed", "cycle", cycle, "error", err)
			return &Turn{Reply: Apology}, nil
		}

		if !msg.IsToolCall() {
			return e.finishTurn(userText, msg.Content, cartUpdated), nil
		}

		e.history = append(e.history, msg)
		for _, call := range msg.ToolCalls {
			result := e.registry.Dispatch(ctx, tools.Invocation{
				Name:      call.Name,
				Arguments: call.Arguments,
			}, callerToken)

			if cartMutatingTools[call.Name] {
				cartUpdated = true
			}

			e.logger.Debug("tool dispatched", "tool", call.Name, "cart_updated", cartUpdated)
			e.history = append(e.history, llm.ToolResultMessage(call.ID, result))
		}
	}

	e.logger.Warn("turn exceeded tool cycle cap", "max_cycles", e.maxCycles)
	return &Turn{Reply: Apology}, nil
}

// finishTurn normalizes the reply, applies the refresh marker, records the
// assistant message and derives quick-reply actions.
func (e *Engine) finishTurn(userText, reply string, cartUpdated bool) *Turn {
	reply = normalizeReply(reply)
	if cartUpdated {
		reply += "\n\n" + RefreshCartMarker
	}

	e.history = append(e.history, llm.AssistantMessage(reply))

	return &Turn{
		Reply:       reply,
		Actions:     SuggestActions(userText, reply),
		CartUpdated: cartUpdated,
	}
}

// normalizeReply cleans up markup the model occasionally emits despite the
// prompt: HTML line breaks become newlines.
func normalizeReply(reply string) string {
	reply = strings.ReplaceAll(reply, "<br>", "\n")
	reply = strings.ReplaceAll(reply, "<br/>", "\n")
	return reply
}

// HistoryLen reports the number of messages in the conversation, the system
// prompt included. The session registry uses it for logging only.
func (e *Engine) HistoryLen() int { return len(e.history) }
