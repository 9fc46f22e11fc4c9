// Package relay wires validation, correlation and dispatch into the handler
// run once per inbound alert event.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/arbitraryexecution/forta-relay/internal/event"
	"github.com/arbitraryexecution/forta-relay/internal/metrics"
	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

// Correlator resolves an alert reference to its full alert records.
type Correlator interface {
	Correlate(ctx context.Context, agentID, txHash, alertHash string) ([]models.AlertRecord, error)
}

// Formatter renders the message for one alert record.
type Formatter interface {
	Format(record models.AlertRecord, txHash string) (string, error)
}

// Dispatcher delivers messages to a webhook.
type Dispatcher interface {
	Dispatch(ctx context.Context, url string, messages []string) error
}

// Options encapsulates the dependencies of a Handler.
type Options struct {
	SecretName string
	Correlator Correlator
	Formatter  Formatter
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

// Handler processes inbound alert events. It holds no per-event state and is
// safe for concurrent use.
type Handler struct {
	secretName string
	correlator Correlator
	formatter  Formatter
	dispatcher Dispatcher
	log        *slog.Logger
}

// New constructs a Handler.
func New(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		secretName: opts.SecretName,
		correlator: opts.Correlator,
		formatter:  opts.Formatter,
		dispatcher: opts.Dispatcher,
		log:        logger.With("component", "relay"),
	}
}

// SecretName is the secret key holding the webhook URL.
func (h *Handler) SecretName() string {
	return h.secretName
}

// HandleRaw decodes a JSON event and handles it. A payload that is not a
// JSON object is a no-op like any other malformed event.
func (h *Handler) HandleRaw(ctx context.Context, raw []byte) (models.Result, error) {
	ev, err := event.Decode(raw)
	if err != nil {
		h.log.Warn("could not decode event, ignoring", "error", err)
		metrics.RecordNoop(string(event.AbsentEvent))
		return models.Result{}, nil
	}
	return h.Handle(ctx, ev)
}

// Handle runs one event through validation, correlation, formatting and
// delivery. Missing fields end the invocation quietly; query, format and
// delivery failures are returned.
func (h *Handler) Handle(ctx context.Context, ev *models.InboundEvent) (models.Result, error) {
	log := h.log.With("invocation_id", uuid.NewString())

	if ev != nil {
		log.Info("autotask event", "event", jsonString(ev.Redacted()))
		if ev.Request != nil && ev.Request.Body != nil {
			log.Info("body", "body", jsonString(ev.Request.Body))
		}
	}

	out := event.Validate(ev, h.secretName)
	if !out.OK() {
		log.Info("event missing required field, nothing to do", "missing", out.Absence)
		metrics.RecordNoop(string(out.Absence))
		return models.Result{}, nil
	}
	target := out.Target

	log = log.With(
		"alert_hash", target.AlertHash,
		"transaction_hash", target.TransactionHash,
		"agent_id", target.AgentID,
	)

	alerts, err := h.correlator.Correlate(ctx, target.AgentID, target.TransactionHash, target.AlertHash)
	if err != nil {
		metrics.RecordEvent(metrics.OutcomeFailed)
		log.Error("failed to fetch alerts", "error", err)
		return models.Result{}, fmt.Errorf("correlate alert %s: %w", target.AlertHash, err)
	}
	log.Debug("matched alerts", "alerts", jsonString(alerts))

	messages := make([]string, 0, len(alerts))
	for _, a := range alerts {
		msg, err := h.formatter.Format(a, target.TransactionHash)
		if err != nil {
			metrics.RecordEvent(metrics.OutcomeFailed)
			log.Error("failed to format alert", "error", err)
			return models.Result{}, fmt.Errorf("format alert: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := h.dispatcher.Dispatch(ctx, target.WebhookURL, messages); err != nil {
		metrics.RecordEvent(metrics.OutcomeFailed)
		log.Error("failed to deliver messages", "error", err)
		return models.Result{}, fmt.Errorf("deliver messages: %w", err)
	}

	metrics.RecordEvent(metrics.OutcomeProcessed)
	log.Info("event processed", "messages", len(messages))
	return models.Result{}, nil
}

func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
