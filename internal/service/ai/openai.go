package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/med-assist/backend/internal/model/chat"
)

// OpenAICompleter calls an OpenAI compatible chat completion endpoint.
type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter creates a client. An empty baseURL uses the public API.
func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Name returns the model identifier.
func (c *OpenAICompleter) Name() string {
	return c.model
}

// Complete sends the system instruction and turns as one chat completion.
func (c *OpenAICompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(p.Messages)+1)
	msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: p.System})
	for _, turn := range p.Messages {
		role := openai.ChatMessageRoleUser
		if turn.Role == chat.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: %w", ErrProvider, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}
