package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/arbitraryexecution/forta-relay/internal/metrics"
)

// DefaultRetryDelay is how long a rate-limited delivery waits before its single retry.
const DefaultRetryDelay = 5 * time.Second

// StatusError is a non-2xx answer from the webhook.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook returned status %d (%s)", e.StatusCode, e.Body)
}

// IsRateLimited reports whether err is a 429 from the webhook.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusTooManyRequests
}

type discordMessage struct {
	Content string `json:"content"`
}

// WebhookSenderOptions configures a WebhookSender.
type WebhookSenderOptions struct {
	Timeout    time.Duration // 0 = no timeout
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// WebhookSender posts messages to a Discord webhook.
type WebhookSender struct {
	client     *http.Client
	retryDelay time.Duration
	log        *slog.Logger
}

// NewWebhookSender returns a sender. A non-positive RetryDelay falls back to
// DefaultRetryDelay.
func NewWebhookSender(opts WebhookSenderOptions) *WebhookSender {
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookSender{
		client:     &http.Client{Timeout: opts.Timeout},
		retryDelay: retryDelay,
		log:        logger.With("component", "discord_webhook_sender"),
	}
}

// Send posts message to url. A 429 is retried exactly once after the retry
// delay; the second attempt's outcome is final. Every other failure is
// returned as is.
func (s *WebhookSender) Send(ctx context.Context, url, message string) error {
	body, err := json.Marshal(discordMessage{Content: message})
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	err = s.post(ctx, url, body)
	if IsRateLimited(err) {
		metrics.RecordRateLimited()
		s.log.Warn("webhook rate limited, retrying once", "delay", s.retryDelay)

		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			err = fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			metrics.RecordDelivery(err)
			return err
		}
		err = s.post(ctx, url, body)
	}

	metrics.RecordDelivery(err)
	if err != nil {
		return err
	}
	s.log.Debug("webhook delivered")
	return nil
}

func (s *WebhookSender) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	_ = resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body := strings.TrimSpace(string(respBody))
		if readErr != nil {
			body = fmt.Sprintf("body read error: %v", readErr)
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: body}
	}
	return nil
}
