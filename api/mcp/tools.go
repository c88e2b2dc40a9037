package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/orchestrator"
)

var (
	issueToolName    = "issue_conversation"
	issueDescription = "Start a new conversation bound to a preset. Returns the conversation key to pass to the ask and history tools."

	askToolName    = "ask"
	askDescription = "Ask the next question in a conversation. The question may be text or any JSON value; set structured to parse the reply as JSON."

	historyToolName    = "history"
	historyDescription = "List the turns of a conversation, oldest first. Set windowed to see only the turns replayed to the model."
)

// IssueInput represents the input arguments for the issue_conversation tool.
type IssueInput struct {
	Preset        string `json:"preset" jsonschema:"the preset to bind the conversation to (json_generator or assistant)"`
	Title         string `json:"title,omitempty" jsonschema:"a label for the conversation"`
	PreferredLang string `json:"preferred_lang,omitempty" jsonschema:"overrides the preferred language of the user profile"`
	Fullname      string `json:"fullname,omitempty" jsonschema:"overrides the full name of the user profile"`
}

// IssueOutput represents the output of the issue_conversation tool.
type IssueOutput struct {
	ConversationKey string `json:"conversation_key"`
	Title           string `json:"title"`
	Preset          string `json:"preset"`
	Model           string `json:"model"`
	CreatedAt       string `json:"created_at"`
}

// AskInput represents the input arguments for the ask tool.
type AskInput struct {
	ConversationKey string `json:"conversation_key" jsonschema:"the key returned by issue_conversation"`
	Question        any    `json:"question" jsonschema:"the question, as text or any JSON value"`
	Structured      bool   `json:"structured,omitempty" jsonschema:"parse the reply as a JSON envelope"`
}

// Message is one replayed history entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AskOutput represents the output of the ask tool.
type AskOutput struct {
	TurnID     int64     `json:"turn_id"`
	Reply      any       `json:"reply"`
	Structured bool      `json:"structured"`
	History    []Message `json:"history,omitempty"`
}

// HistoryInput represents the input arguments for the history tool.
type HistoryInput struct {
	ConversationKey string `json:"conversation_key" jsonschema:"the key returned by issue_conversation"`
	Windowed        bool   `json:"windowed,omitempty" jsonschema:"return only the turns replayed to the model"`
}

// Turn represents a single stored question and response.
type Turn struct {
	ID        int64  `json:"id"`
	Question  string `json:"question"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}

// HistoryOutput represents the output of the history tool.
type HistoryOutput struct {
	ConversationKey string `json:"conversation_key"`
	Count           int    `json:"count"`
	Turns           []Turn `json:"turns,omitempty"`
}

func (b *binding) handleIssue(ctx context.Context, _ *mcp.CallToolRequest, input IssueInput) (*mcp.CallToolResult, IssueOutput, error) {
	res, err := b.orch.Issue(b.context(ctx), orchestrator.IssueRequest{
		Preset:        input.Preset,
		Title:         input.Title,
		PreferredLang: input.PreferredLang,
		Fullname:      input.Fullname,
	})
	if err != nil {
		return b.toolError(issueToolName, err), IssueOutput{}, nil
	}

	return nil, IssueOutput{
		ConversationKey: res.Key,
		Title:           res.Title,
		Preset:          res.Preset,
		Model:           res.Model,
		CreatedAt:       res.CreatedAt.Format(time.RFC3339Nano),
	}, nil
}

func (b *binding) handleAsk(ctx context.Context, req *mcp.CallToolRequest, input AskInput) (*mcp.CallToolResult, AskOutput, error) {
	b.logger.Debug("MCP ask request",
		zap.String("conversation_key", input.ConversationKey),
		zap.Bool("structured", input.Structured),
	)

	res, err := b.orch.Ask(b.context(ctx), orchestrator.AskRequest{
		Key:        input.ConversationKey,
		Question:   wireQuestion(req, input.Question),
		Structured: input.Structured,
	})
	if err != nil {
		return b.toolError(askToolName, err), AskOutput{}, nil
	}

	history := make([]Message, 0, len(res.History))
	for _, m := range res.History {
		history = append(history, Message{Role: m.Role, Content: m.Content})
	}

	return nil, AskOutput{
		TurnID:     res.TurnID,
		Reply:      res.Reply.Value(),
		Structured: res.Reply.IsStructured(),
		History:    history,
	}, nil
}

// wireQuestion returns the question exactly as the client sent it. The SDK
// decodes arguments through map[string]any, which turns large numbers into
// float64; decoded is used when the raw arguments are unavailable.
func wireQuestion(req *mcp.CallToolRequest, decoded any) any {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return decoded
	}

	var args struct {
		Question json.RawMessage `json:"question"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil || len(args.Question) == 0 {
		return decoded
	}
	return args.Question
}

func (b *binding) handleHistory(ctx context.Context, _ *mcp.CallToolRequest, input HistoryInput) (*mcp.CallToolResult, HistoryOutput, error) {
	turns, err := b.orch.History(b.context(ctx), input.ConversationKey, "", input.Windowed)
	if err != nil {
		return b.toolError(historyToolName, err), HistoryOutput{}, nil
	}

	out := HistoryOutput{
		ConversationKey: input.ConversationKey,
		Count:           len(turns),
		Turns:           make([]Turn, 0, len(turns)),
	}
	for _, t := range turns {
		out.Turns = append(out.Turns, Turn{
			ID:        t.ID,
			Question:  t.Question,
			Response:  t.Response,
			CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return nil, out, nil
}
