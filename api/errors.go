package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/orchestrator"
)

// statuses maps every error kind to its HTTP status.
var statuses = map[string]int{
	orchestrator.KindUserNotFound:           fiber.StatusNotFound,
	orchestrator.KindUnknownPreset:          fiber.StatusBadRequest,
	orchestrator.KindUnsupportedModel:       fiber.StatusUnprocessableEntity,
	orchestrator.KindInvalidConversationKey: fiber.StatusNotFound,
	orchestrator.KindValueRequired:          fiber.StatusBadRequest,
	orchestrator.KindProviderError:          fiber.StatusBadGateway,
	orchestrator.KindProviderTimeout:        fiber.StatusGatewayTimeout,
	orchestrator.KindUnauthorized:           fiber.StatusForbidden,
	orchestrator.KindInternal:               fiber.StatusInternalServerError,
}

// fail writes the error body for an orchestrator error.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	kind := orchestrator.Kind(err)
	status, ok := statuses[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	if kind == orchestrator.KindInternal {
		s.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	} else {
		s.logger.Debug("request rejected",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("kind", kind),
			zap.Error(err),
		)
	}

	// Only the sentinel text leaves the server; the detail is logged above.
	return c.Status(status).JSON(llm.ErrorResponse{
		Error: orchestrator.Message(err),
		Kind:  kind,
		Data:  map[string]any{},
	})
}

// badRequest rejects a body that could not be decoded.
func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{
		Error: msg,
		Kind:  orchestrator.KindValueRequired,
		Data:  map[string]any{},
	})
}
