package ollama

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

const defaultBaseURL = "http://localhost:11434"

// provider implements the Provider interface for Ollama's chat API.
type provider struct {
	model    string
	baseURL  string
	sampling llm.Sampling
	client   *http.Client
}

// New creates an Ollama adapter. An empty baseURL targets localhost:11434.
func New(model, baseURL string, sampling llm.Sampling) *provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &provider{
		model:    model,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		sampling: sampling,
		client:   http.DefaultClient,
	}
}

func (p *provider) Name() string {
	return "ollama"
}

// SendMessage replays history plus newMessage and returns the reply content.
func (p *provider) SendMessage(ctx context.Context, history []llm.Message, newMessage string) (string, error) {
	messages := make([]ollamaMessage, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ollamaMessage{Role: llm.RoleUser, Content: newMessage})

	reqBody := ollamaRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   false,
		Options:  p.options(),
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API error (status %d): %s", resp.StatusCode, string(body))
	}

	var result ollamaResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}

	if result.Message.Content == "" {
		return "", fmt.Errorf("ollama: %w", llm.ErrEmptyReply)
	}

	return result.Message.Content, nil
}

func (p *provider) options() *ollamaOptions {
	s := p.sampling
	if s == (llm.Sampling{}) {
		return nil
	}
	return &ollamaOptions{
		Temperature:      s.Temperature,
		TopP:             s.TopP,
		NumPredict:       s.MaxTokens,
		FrequencyPenalty: s.FrequencyPenalty,
		PresencePenalty:  s.PresencePenalty,
	}
}
