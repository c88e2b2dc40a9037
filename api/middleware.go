package api

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/parley/pkg/auth"
	"github.com/papercomputeco/parley/pkg/llm"
	"github.com/papercomputeco/parley/pkg/orchestrator"
)

// requireBearer verifies the Authorization header and carries the principal
// on the request's user context.
func (s *Server) requireBearer(c *fiber.Ctx) error {
	token, err := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if err == nil {
		var userID string
		userID, err = s.verifier.Verify(c.UserContext(), token)
		if err == nil {
			c.SetUserContext(auth.WithUserID(c.UserContext(), userID))
			return c.Next()
		}
	}

	s.logger.Debug("rejected request",
		zap.String("path", c.Path()),
		zap.Error(err),
	)

	c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{
		Error: err.Error(),
		Kind:  orchestrator.KindUnauthorized,
		Data:  map[string]any{},
	})
}
