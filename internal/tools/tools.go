// Package tools declares the callable tools advertised to the model and
// dispatches tool invocations. Dispatch is total: whatever goes wrong, the
// caller gets a result string, never an error or a panic, because a failed
// tool call must not abort the conversation.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/threadcart/threadcart/internal/llm"
)

// accessTokenKey is the reserved argument key carrying the caller's token
// into handlers of auth-requiring tools. The model never sees or sets it.
const accessTokenKey = "access_token"

// Args holds decoded invocation arguments.
type Args map[string]any

// String returns the named string argument, or "" when absent.
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the named integer argument. JSON numbers decode as float64.
func (a Args) Int(key string) int {
	f, _ := a[key].(float64)
	return int(f)
}

// Float returns the named numeric argument.
func (a Args) Float(key string) float64 {
	f, _ := a[key].(float64)
	return f
}

// Token returns the injected caller token, empty for anonymous calls.
func (a Args) Token() string {
	return a.String(accessTokenKey)
}

// Handler executes one tool call and returns the result text fed back to
// the model.
type Handler func(ctx context.Context, args Args) (string, error)

// Descriptor declares one tool: its model-facing contract and its handler.
type Descriptor struct {
	Name         string
	Description  string
	Schema       map[string]any // strict JSON schema for the arguments
	RequiresAuth bool
	Handler      Handler
}

// Invocation is one tool call requested by the model.
type Invocation struct {
	Name      string
	Arguments json.RawMessage
}

// ArgumentError reports invocation arguments that violate a tool's schema.
type ArgumentError struct {
	Tool     string
	Problems []string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %s", e.Tool, strings.Join(e.Problems, "; "))
}

type registered struct {
	Descriptor
	schema *gojsonschema.Schema
}

// Registry maps tool names to descriptors and validates arguments before
// handlers run.
type Registry struct {
	byName map[string]*registered
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{byName: make(map[string]*registered), logger: logger}
}

// Register adds a tool. The schema is compiled eagerly so a malformed
// declaration fails at startup, not mid-conversation.
func (r *Registry) Register(d Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if _, exists := r.byName[d.Name]; exists {
		return fmt.Errorf("register tool %s: already registered", d.Name)
	}
	if d.Handler == nil {
		return fmt.Errorf("register tool %s: nil handler", d.Name)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(d.Schema))
	if err != nil {
		return fmt.Errorf("register tool %s: compiling schema: %w", d.Name, err)
	}

	r.byName[d.Name] = &registered{Descriptor: d, schema: compiled}
	r.order = append(r.order, d.Name)
	return nil
}

// Defs returns the tool declarations in registration order, in the form the
// model client sends to the provider.
func (r *Registry) Defs() []llm.ToolDef {
	defs := make([]llm.ToolDef, 0, len(r.order))
	for _, name := range r.order {
		d := r.byName[name]
		defs = append(defs, llm.ToolDef{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Schema,
		})
	}
	return defs
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

// RequiresAuth reports whether the named tool receives the caller token.
func (r *Registry) RequiresAuth(name string) bool {
	d, ok := r.byName[name]
	return ok && d.RequiresAuth
}

// Dispatch executes one invocation and always returns result text:
// unknown tool, invalid arguments, handler failure and even a handler panic
// all render to strings the model can read and recover from.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation, callerToken string) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool handler panicked", "tool", inv.Name, "panic", rec)
			result = fmt.Sprintf("error executing tool %s: internal error", inv.Name)
		}
	}()

	d, ok := r.byName[inv.Name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", inv.Name)
		return fmt.Sprintf("No such tool %s", inv.Name)
	}

	args, err := r.decode(d, inv.Arguments)
	if err != nil {
		r.logger.Warn("tool arguments rejected", "tool", inv.Name, "error", err)
		return err.Error()
	}

	if d.RequiresAuth && callerToken != "" {
		args[accessTokenKey] = callerToken
	}

	out, handlerErr := d.Handler(ctx, args)
	if handlerErr != nil {
		r.logger.Warn("tool execution failed", "tool", inv.Name, "error", handlerErr)
		return fmt.Sprintf("error executing tool %s: %s", inv.Name, userMessage(handlerErr))
	}
	return out
}

// decode unmarshals and schema-validates the raw arguments.
func (r *Registry) decode(d *registered, raw json.RawMessage) (Args, *ArgumentError) {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	res, err := d.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, &ArgumentError{Tool: d.Name, Problems: []string{"arguments are not valid JSON"}}
	}
	if !res.Valid() {
		problems := make([]string, 0, len(res.Errors()))
		for _, issue := range res.Errors() {
			problems = append(problems, issue.String())
		}
		return nil, &ArgumentError{Tool: d.Name, Problems: problems}
	}

	var args Args
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, &ArgumentError{Tool: d.Name, Problems: []string{"arguments are not a JSON object"}}
	}
	if args == nil {
		args = Args{}
	}
	return args, nil
}
