// Package langchain adapts OpenAI-compatible endpoints (xAI grok, DeepSeek,
// local gateways) through langchaingo's model abstraction.
package langchain

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"github.com/papercomputeco/parley/pkg/llm"
)

// provider implements the Provider interface over a langchaingo model.
type provider struct {
	model    llms.Model
	sampling llm.Sampling
}

// New creates a langchaingo-backed adapter for an OpenAI-compatible endpoint.
// baseURL includes the version path (e.g. "https://api.x.ai/v1").
func New(model, baseURL, apiKey string, sampling llm.Sampling) (*provider, error) {
	opts := []lcopenai.Option{
		lcopenai.WithModel(model),
		lcopenai.WithToken(apiKey),
	}
	if baseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(baseURL))
	}

	client, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating langchain client: %w", err)
	}

	return &provider{model: client, sampling: sampling}, nil
}

func (p *provider) Name() string {
	return "langchain"
}

// SendMessage replays history plus newMessage and returns the first choice.
func (p *provider) SendMessage(ctx context.Context, history []llm.Message, newMessage string) (string, error) {
	content := make([]llms.MessageContent, 0, len(history)+1)
	for _, m := range history {
		content = append(content, llms.TextParts(messageType(m.Role), m.Content))
	}
	content = append(content, llms.TextParts(llms.ChatMessageTypeHuman, newMessage))

	resp, err := p.model.GenerateContent(ctx, content, p.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("langchain request: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		return "", fmt.Errorf("langchain: %w", llm.ErrEmptyReply)
	}

	return resp.Choices[0].Content, nil
}

func messageType(role string) llms.ChatMessageType {
	switch role {
	case llm.RoleSystem:
		return llms.ChatMessageTypeSystem
	case llm.RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}

func (p *provider) callOptions() []llms.CallOption {
	s := p.sampling

	var opts []llms.CallOption
	if s.Temperature != nil {
		opts = append(opts, llms.WithTemperature(*s.Temperature))
	}
	if s.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*s.MaxTokens))
	}
	if s.TopP != nil {
		opts = append(opts, llms.WithTopP(*s.TopP))
	}
	if s.FrequencyPenalty != nil {
		opts = append(opts, llms.WithFrequencyPenalty(*s.FrequencyPenalty))
	}
	if s.PresencePenalty != nil {
		opts = append(opts, llms.WithPresencePenalty(*s.PresencePenalty))
	}
	return opts
}
