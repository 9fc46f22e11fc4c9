package server

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

// handleAutotask runs one autotask-style event, secrets included.
// Malformed or incomplete events are no-ops and still answer {}.
// URL: POST /api/v1/autotask
func (s *Server) handleAutotask(c *fiber.Ctx) error {
	res, err := s.relay.HandleRaw(c.UserContext(), c.Body())
	if err != nil {
		return SendErrorWithType(c, fiber.StatusBadGateway, err.Error(), models.UpstreamErrorType)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}

// handleAlertWebhook accepts the body Forta posts to a webhook and runs it
// with the webhook URL from configuration as the secret.
// URL: POST /api/v1/alerts
func (s *Server) handleAlertWebhook(c *fiber.Ctx) error {
	var body models.EventBody
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return SendErrorWithType(c, fiber.StatusBadRequest,
			fmt.Sprintf("Invalid request body: %v", err), models.ValidationErrorType)
	}

	ev := &models.InboundEvent{
		Secrets: map[string]any{},
		Request: &models.EventRequest{Body: &body},
	}
	if url := s.config.Discord.WebhookURL; url != "" {
		ev.Secrets[s.config.Discord.SecretName] = url
	}

	res, err := s.relay.Handle(c.UserContext(), ev)
	if err != nil {
		return SendErrorWithType(c, fiber.StatusBadGateway, err.Error(), models.UpstreamErrorType)
	}
	return c.Status(fiber.StatusOK).JSON(res)
}
