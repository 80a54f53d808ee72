package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
)

// ArkCompleter runs prompts through an eino chain ending in a chat model.
type ArkCompleter struct {
	name  string
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkCompleter compiles the template and model into a chain.
func NewArkCompleter(ctx context.Context, chatModel model.ChatModel, name string) (*ArkCompleter, error) {
	template := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(template)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile chat chain: %w", err)
	}

	return &ArkCompleter{name: name, chain: runnable}, nil
}

// Name returns the model identifier.
func (c *ArkCompleter) Name() string {
	return c.name
}

// Complete invokes the chain with per-call generation limits.
func (c *ArkCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	input := chainInput(p)

	resp, err := c.chain.Invoke(ctx, input, compose.WithChatModelOption(
		model.WithMaxTokens(p.MaxTokens),
		model.WithTemperature(p.Temperature),
	))
	if err != nil {
		return "", fmt.Errorf("%w: ark chain: %w", ErrProvider, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Content, nil
}

// chainInput splits the prompt into the template variables. The final
// message is the current question.
func chainInput(p Prompt) map[string]any {
	var (
		history []*schema.Message
		query   string
	)
	if n := len(p.Messages); n > 0 {
		query = p.Messages[n-1].Content
		history = make([]*schema.Message, 0, n-1)
		for _, turn := range p.Messages[:n-1] {
			switch turn.Role {
			case chat.RoleAssistant:
				history = append(history, schema.AssistantMessage(turn.Content, nil))
			default:
				history = append(history, schema.UserMessage(turn.Content))
			}
		}
	}

	return map[string]any{
		"system":  p.System,
		"history": history,
		"query":   query,
	}
}
