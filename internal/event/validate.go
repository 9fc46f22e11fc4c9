// Package event unwraps inbound autotask events into the fields the relay
// acts on.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

// Absence names the first missing piece of an inbound event.
type Absence string

const (
	AbsentEvent         Absence = "event"
	AbsentSecrets       Absence = "secrets"
	AbsentWebhookSecret Absence = "webhook_secret"
	AbsentRequest       Absence = "request"
	AbsentBody          Absence = "request.body"
	AbsentAlert         Absence = "request.body.alert"
	AbsentSource        Absence = "request.body.alert.source"
	AbsentAgent         Absence = "request.body.alert.source.agent"
)

// Target is a fully unwrapped event: which alert to look up and where to send
// the resulting messages.
type Target struct {
	AgentID         string
	TransactionHash string
	AlertHash       string
	WebhookURL      string
}

// Outcome is the result of validating an event. Exactly one of Target and
// Absence is set.
type Outcome struct {
	Target  *Target
	Absence Absence
}

// OK reports whether the event carried everything needed.
func (o Outcome) OK() bool {
	return o.Target != nil
}

// ErrNotObject is returned by Decode for payloads that are not a JSON object.
var ErrNotObject = errors.New("event payload is not a JSON object")

// Decode parses a raw event payload.
func Decode(raw []byte) (*models.InboundEvent, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNotObject
	}
	var ev models.InboundEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// Validate walks the event in a fixed order and stops at the first missing
// field. secretName is the key in ev.Secrets that holds the webhook URL.
func Validate(ev *models.InboundEvent, secretName string) Outcome {
	if ev == nil {
		return absent(AbsentEvent)
	}
	if ev.Secrets == nil {
		return absent(AbsentSecrets)
	}
	// Other secrets may hold any JSON value; only the webhook one must be a string.
	webhookURL, ok := ev.Secrets[secretName].(string)
	if !ok || webhookURL == "" {
		return absent(AbsentWebhookSecret)
	}
	if ev.Request == nil {
		return absent(AbsentRequest)
	}
	if ev.Request.Body == nil {
		return absent(AbsentBody)
	}
	alert := ev.Request.Body.Alert
	if alert == nil {
		return absent(AbsentAlert)
	}
	if alert.Source == nil {
		return absent(AbsentSource)
	}
	if alert.Source.Agent == nil {
		return absent(AbsentAgent)
	}

	return Outcome{Target: &Target{
		AgentID:         alert.Source.Agent.ID,
		TransactionHash: alert.Source.TransactionHash,
		AlertHash:       alert.Hash,
		WebhookURL:      webhookURL,
	}}
}

func absent(a Absence) Outcome {
	return Outcome{Absence: a}
}
