// Package client is a Go client for the parley HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/llm"
)

// DefaultTimeout bounds a single request. Questions wait on the provider,
// so it sits above the server's default provider timeout.
const DefaultTimeout = 5 * time.Minute

// Error is a failed API response.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("parley API returned status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("parley API returned status %d (%s): %s", e.Status, e.Kind, e.Message)
}

// IsKind reports whether err is an API error of the given kind.
func IsKind(err error, kind string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IssueRequest asks for a new conversation.
type IssueRequest struct {
	Preset        string `json:"preset"`
	PreferredLang string `json:"preferred_lang,omitempty"`
	Fullname      string `json:"fullname,omitempty"`
	Title         string `json:"title,omitempty"`
}

// Issued is a freshly issued conversation.
type Issued struct {
	Key       string    `json:"conversation_key"`
	Title     string    `json:"title"`
	Preset    string    `json:"preset"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// Answer is the reply to a question. Reply holds a JSON string for raw
// replies and the decoded envelope for structured ones.
type Answer struct {
	History []llm.Message   `json:"history"`
	Reply   json.RawMessage `json:"reply"`
	TurnID  int64           `json:"turn_id"`
}

// Text returns the reply text of a raw reply, or the indented JSON of a
// structured one.
func (a *Answer) Text() string {
	var s string
	if err := json.Unmarshal(a.Reply, &s); err == nil {
		return s
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, a.Reply, "", "  "); err != nil {
		return string(a.Reply)
	}
	return buf.String()
}

// IsStructured reports whether the reply was resolved as JSON rather than
// passed through as text.
func (a *Answer) IsStructured() bool {
	var s string
	return json.Unmarshal(a.Reply, &s) != nil
}

// Client talks to a parley API server as the holder of a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// Issue starts a conversation.
func (c *Client) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	var out Issued
	if err := c.do(ctx, http.MethodPost, "/v1/conversations", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns the caller's conversations.
func (c *Client) List(ctx context.Context) ([]*conversation.Key, error) {
	var out struct {
		Conversations []*conversation.Key `json:"conversations"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// Ask sends the next question of a conversation. question is text or any
// JSON-encodable value.
func (c *Client) Ask(ctx context.Context, key string, question any, structured bool) (*Answer, error) {
	body := struct {
		Question   any  `json:"question"`
		Structured bool `json:"structured,omitempty"`
	}{question, structured}

	var out Answer
	if err := c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(key)+"/ask", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns the turns of a conversation, oldest first.
func (c *Client) History(ctx context.Context, key string, windowed bool) ([]*conversation.Turn, error) {
	path := "/v1/conversations/" + url.PathEscape(key) + "/history?windowed=" + strconv.FormatBool(windowed)

	var out struct {
		Turns []*conversation.Turn `json:"turns"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Turns, nil
}

// Save marks a conversation saved or unsaved.
func (c *Client) Save(ctx context.Context, key string, saved bool) error {
	body := struct {
		Saved bool `json:"saved"`
	}{saved}
	return c.do(ctx, http.MethodPut, "/v1/conversations/"+url.PathEscape(key)+"/saved", body, nil)
}

// Delete deletes a conversation.
func (c *Client) Delete(ctx context.Context, key string) error {
	return c.do(ctx, http.MethodDelete, "/v1/conversations/"+url.PathEscape(key), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending request to %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}

		var er llm.ErrorResponse
		if json.Unmarshal(respBody, &er) == nil && er.Error != "" {
			apiErr.Kind = er.Kind
			apiErr.Message = er.Error
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
