// Package anthropic adapts Anthropic's Messages API to the provider contract.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/papercomputeco/parley/pkg/llm"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 1024
)

// provider implements the Provider interface for Anthropic's Messages API.
type provider struct {
	model    string
	baseURL  string
	apiKey   string
	sampling llm.Sampling
	client   *http.Client
}

// New creates an Anthropic adapter. An empty baseURL targets api.anthropic.com.
func New(model, baseURL, apiKey string, sampling llm.Sampling) *provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &provider{
		model:    model,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiKey:   apiKey,
		sampling: sampling,
		client:   http.DefaultClient,
	}
}

func (p *provider) Name() string {
	return "anthropic"
}

// SendMessage replays history plus newMessage and returns the text of the reply.
func (p *provider) SendMessage(ctx context.Context, history []llm.Message, newMessage string) (string, error) {
	reqBody := p.buildRequest(history, newMessage)

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result anthropicResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", result.Error.Message)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("anthropic: %w", llm.ErrEmptyReply)
	}

	return text.String(), nil
}

// buildRequest converts a role-tagged history into Anthropic's shape: system
// entries move to the top-level system field, consecutive entries with the
// same role are merged, and the message list always opens with a user turn.
func (p *provider) buildRequest(history []llm.Message, newMessage string) anthropicRequest {
	var (
		system   []string
		messages []anthropicMessage
	)

	all := append(history[:len(history):len(history)], llm.NewTextMessage(llm.RoleUser, newMessage))
	for _, m := range all {
		if m.Role == llm.RoleSystem {
			system = append(system, m.Content)
			continue
		}

		// The API rejects conversations that open with an assistant turn;
		// the handshake acknowledgment carries no information the system
		// prompt doesn't already hold.
		if len(messages) == 0 && m.Role == llm.RoleAssistant {
			continue
		}

		if n := len(messages); n > 0 && messages[n-1].Role == m.Role {
			messages[n-1].Content += "\n\n" + m.Content
			continue
		}
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := defaultMaxTokens
	if p.sampling.MaxTokens != nil {
		maxTokens = *p.sampling.MaxTokens
	}

	return anthropicRequest{
		Model:       p.model,
		Messages:    messages,
		System:      strings.Join(system, "\n\n"),
		MaxTokens:   maxTokens,
		Temperature: clampTemperature(p.sampling.Temperature),
		TopP:        p.sampling.TopP,
	}
}

// clampTemperature limits temperature to Anthropic's accepted [0, 1] range.
func clampTemperature(t *float64) *float64 {
	if t == nil || *t <= 1 {
		return t
	}
	one := 1.0
	return &one
}
