// Package openai adapts the OpenAI Chat Completions API to the provider contract.
package openai

import (
	"context"
	"errors"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/papercomputeco/parley/pkg/llm"
)

// provider implements the Provider interface for OpenAI's Chat Completions API.
type provider struct {
	client   *goopenai.Client
	model    string
	sampling llm.Sampling
}

// New creates an OpenAI adapter. baseURL must include the API version path
// (e.g. "https://api.openai.com/v1"); empty uses the client default.
func New(model, baseURL, apiKey string, sampling llm.Sampling) *provider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &provider{
		client:   goopenai.NewClientWithConfig(cfg),
		model:    model,
		sampling: sampling,
	}
}

func (o *provider) Name() string {
	return "openai"
}

// SendMessage replays history plus newMessage and returns the first choice.
func (o *provider) SendMessage(ctx context.Context, history []llm.Message, newMessage string) (string, error) {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    chatRole(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{
		Role:    goopenai.ChatMessageRoleUser,
		Content: newMessage,
	})

	req := goopenai.ChatCompletionRequest{
		Model:    o.model,
		Messages: messages,
	}
	applySampling(&req, o.sampling)

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		var apiErr *goopenai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai API error (status %d): %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("openai request: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai: %w", llm.ErrEmptyReply)
	}

	return resp.Choices[0].Message.Content, nil
}

func chatRole(role string) string {
	switch role {
	case llm.RoleSystem:
		return goopenai.ChatMessageRoleSystem
	case llm.RoleAssistant:
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}

func applySampling(req *goopenai.ChatCompletionRequest, s llm.Sampling) {
	if s.Temperature != nil {
		req.Temperature = float32(*s.Temperature)
	}
	if s.MaxTokens != nil {
		req.MaxTokens = *s.MaxTokens
	}
	if s.TopP != nil {
		req.TopP = float32(*s.TopP)
	}
	if s.FrequencyPenalty != nil {
		req.FrequencyPenalty = float32(*s.FrequencyPenalty)
	}
	if s.PresencePenalty != nil {
		req.PresencePenalty = float32(*s.PresencePenalty)
	}
}
