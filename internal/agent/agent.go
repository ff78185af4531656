// Package agent answers natural-language questions about a player's
// profile by letting a chat model call coaching tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxSteps bounds the model round-trips of one question.
const DefaultMaxSteps = 6

// maxHistory is the number of past messages kept as conversation context.
const maxHistory = 20

// ErrTooManySteps indicates the model kept calling tools without
// answering.
var ErrTooManySteps = errors.New("agent: too many tool calls without an answer")

// Agent is a coaching conversation. It is safe for concurrent use, but
// questions are answered one at a time.
type Agent struct {
	llm      LLM
	tools    map[string]Tool
	specs    []ToolSpec
	system   string
	maxSteps int
	logger   *zap.Logger

	mu      sync.Mutex
	history []Message
}

// Option configures an Agent.
type Option func(*Agent)

// WithMaxSteps bounds the model round-trips per question.
func WithMaxSteps(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxSteps = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) { a.logger = l }
}

// New creates an agent for username using tools.
func New(llm LLM, username string, tools []Tool, opts ...Option) *Agent {
	a := &Agent{
		llm:      llm,
		tools:    make(map[string]Tool, len(tools)),
		system:   systemPrompt(username),
		maxSteps: DefaultMaxSteps,
		logger:   zap.NewNop(),
	}
	for _, t := range tools {
		a.tools[t.Spec.Name] = t
		a.specs = append(a.specs, t.Spec)
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.Named("agent")
	return a
}

func systemPrompt(username string) string {
	var b strings.Builder
	b.WriteString("You are a helpful chess coach assistant for a human player")
	if username != "" {
		fmt.Fprintf(&b, " (chess.com user %s)", username)
	}
	b.WriteString(".\n")
	b.WriteString("Use the tools to look up the player's profile before answering questions about their style, openings or games. ")
	b.WriteString("Base your advice on the data the tools return and say so when the profile has too few games to be sure. ")
	b.WriteString("Only update or rebuild the profile when the player asks for it.")
	return b.String()
}

// Ask answers question, calling tools as the model requests. A tool
// failure is reported back to the model rather than aborting the answer.
func (a *Agent) Ask(ctx context.Context, question string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	user := Message{Role: RoleUser, Content: question}
	msgs := make([]Message, 0, len(a.history)+8)
	msgs = append(msgs, Message{Role: RoleSystem, Content: a.system})
	msgs = append(msgs, a.history...)
	msgs = append(msgs, user)

	for step := 0; step < a.maxSteps; step++ {
		reply, err := a.llm.Chat(ctx, msgs, a.specs)
		if err != nil {
			return "", fmt.Errorf("asking model: %w", err)
		}
		msgs = append(msgs, *reply)

		if len(reply.ToolCalls) == 0 {
			a.remember(user, *reply)
			return strings.TrimSpace(reply.Content), nil
		}

		for _, call := range reply.ToolCalls {
			msgs = append(msgs, Message{
				Role:       RoleTool,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
				Content:    a.call(ctx, call),
			})
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	return "", ErrTooManySteps
}

func (a *Agent) call(ctx context.Context, call ToolCall) string {
	logger := a.logger.With(zap.String("tool", call.Function.Name))
	tool, ok := a.tools[call.Function.Name]
	if !ok {
		logger.Warn("unknown tool requested")
		return fmt.Sprintf("error: unknown tool %q", call.Function.Name)
	}

	logger.Debug("calling tool", zap.String("args", call.Function.Arguments))
	out, err := tool.Run(ctx, json.RawMessage(call.Function.Arguments))
	if err != nil {
		logger.Warn("tool failed", zap.Error(err))
		return "error: " + err.Error()
	}
	return out
}

// remember keeps the question and final answer as context for later
// questions. Tool traffic is not kept.
func (a *Agent) remember(user, answer Message) {
	a.history = append(a.history, user, Message{Role: RoleAssistant, Content: answer.Content})
	if over := len(a.history) - maxHistory; over > 0 {
		a.history = append([]Message(nil), a.history[over:]...)
	}
}

// Reset forgets the conversation.
func (a *Agent) Reset() {
	a.mu.Lock()
	a.history = nil
	a.mu.Unlock()
}
