package server

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/arbitraryexecution/forta-relay/internal/metrics"
)

// --- Meta Handlers ---

// MetaResponse represents the server metadata response
type MetaResponse struct {
	Version       string `json:"version"`
	BuildInfo     string `json:"build_info,omitempty"`
	FortaEndpoint string `json:"forta_endpoint"`
	ChainID       int64  `json:"chain_id"`
	SecretName    string `json:"secret_name"`
	WebhookSet    bool   `json:"webhook_configured"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth reports liveness.
// URL: GET /api/v1/health
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startedAt).Truncate(time.Second).String(),
	})
}

// handleGetMeta returns server metadata including version and upstream configuration.
// The webhook URL itself is never exposed.
// URL: GET /api/v1/meta
func (s *Server) handleGetMeta(c *fiber.Ctx) error {
	return SendSuccess(c, fiber.StatusOK, MetaResponse{
		Version:       s.version,
		BuildInfo:     s.buildInfo,
		FortaEndpoint: s.config.Forta.Endpoint,
		ChainID:       s.config.Forta.ChainID,
		SecretName:    s.config.Discord.SecretName,
		WebhookSet:    s.config.Discord.WebhookURL != "",
	})
}

// handleMetrics writes all metrics in Prometheus text format.
// URL: GET /metrics
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4; charset=utf-8")
	metrics.WritePrometheus(c)
	return nil
}
