package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/parley/pkg/conversation"
	"github.com/papercomputeco/parley/pkg/orchestrator"
)

// IssueRequest is the body of POST /v1/conversations.
type IssueRequest struct {
	Preset        string `json:"preset"`
	PreferredLang string `json:"preferred_lang,omitempty"`
	Fullname      string `json:"fullname,omitempty"`
	Title         string `json:"title,omitempty"`
	UserID        string `json:"user_id,omitempty"`
}

// AskRequest is the body of POST /v1/conversations/:key/ask. Question is
// either a JSON string or any other JSON value.
type AskRequest struct {
	Question   json.RawMessage `json:"question"`
	Structured bool            `json:"structured,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
}

// SaveRequest is the body of PUT /v1/conversations/:key/saved.
type SaveRequest struct {
	Saved  *bool  `json:"saved"`
	UserID string `json:"user_id,omitempty"`
}

// ListResponse lists the principal's conversations.
type ListResponse struct {
	Count         int                 `json:"count"`
	Conversations []*conversation.Key `json:"conversations"`
}

// HistoryResponse contains the turns of a conversation, oldest first.
type HistoryResponse struct {
	ConversationKey string               `json:"conversation_key"`
	Windowed        bool                 `json:"windowed"`
	Count           int                  `json:"count"`
	Turns           []*conversation.Turn `json:"turns"`
}

// SaveResponse echoes the new saved state.
type SaveResponse struct {
	ConversationKey string `json:"conversation_key"`
	Saved           bool   `json:"saved"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleIssue handles POST /v1/conversations.
func (s *Server) handleIssue(c *fiber.Ctx) error {
	var req IssueRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := s.orch.Issue(c.UserContext(), orchestrator.IssueRequest{
		UserID:        req.UserID,
		Preset:        req.Preset,
		PreferredLang: req.PreferredLang,
		Fullname:      req.Fullname,
		Title:         req.Title,
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// handleList handles GET /v1/conversations.
func (s *Server) handleList(c *fiber.Ctx) error {
	keys, err := s.orch.List(c.UserContext(), c.Query("user_id"))
	if err != nil {
		return s.fail(c, err)
	}
	if keys == nil {
		keys = []*conversation.Key{}
	}

	return c.JSON(ListResponse{
		Count:         len(keys),
		Conversations: keys,
	})
}

// handleAsk handles POST /v1/conversations/:key/ask.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	var question any
	if len(req.Question) > 0 {
		question = req.Question
	}

	res, err := s.orch.Ask(c.UserContext(), orchestrator.AskRequest{
		Key:        c.Params("key"),
		UserID:     req.UserID,
		Question:   question,
		Structured: req.Structured,
	})
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(res)
}

// handleHistory handles GET /v1/conversations/:key/history.
func (s *Server) handleHistory(c *fiber.Ctx) error {
	key := c.Params("key")
	windowed := c.QueryBool("windowed", false)

	turns, err := s.orch.History(c.UserContext(), key, c.Query("user_id"), windowed)
	if err != nil {
		return s.fail(c, err)
	}
	if turns == nil {
		turns = []*conversation.Turn{}
	}

	return c.JSON(HistoryResponse{
		ConversationKey: key,
		Windowed:        windowed,
		Count:           len(turns),
		Turns:           turns,
	})
}

// handleSave handles PUT /v1/conversations/:key/saved.
func (s *Server) handleSave(c *fiber.Ctx) error {
	var req SaveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.Saved == nil {
		return badRequest(c, "saved is required")
	}

	key := c.Params("key")
	if err := s.orch.Save(c.UserContext(), key, req.UserID, *req.Saved); err != nil {
		return s.fail(c, err)
	}

	return c.JSON(SaveResponse{
		ConversationKey: key,
		Saved:           *req.Saved,
	})
}

// handleDelete handles DELETE /v1/conversations/:key.
func (s *Server) handleDelete(c *fiber.Ctx) error {
	if err := s.orch.Delete(c.UserContext(), c.Params("key"), c.Query("user_id")); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
