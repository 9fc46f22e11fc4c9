package models

// InboundEvent is the payload an autotask receives when a Forta alert fires.
// Every level is a pointer so that a missing key can be told apart from an
// empty value.
type InboundEvent struct {
	Secrets map[string]any `json:"secrets,omitempty"`
	Request *EventRequest  `json:"request,omitempty"`
}

// EventRequest wraps the HTTP request that triggered the autotask.
type EventRequest struct {
	Body *EventBody `json:"body,omitempty"`
}

// EventBody is the webhook body posted by Forta.
type EventBody struct {
	Alert *AlertRef `json:"alert,omitempty"`
}

// AlertRef identifies exactly one alert occurrence to act on.
type AlertRef struct {
	Hash   string          `json:"hash"`
	Source *AlertRefSource `json:"source,omitempty"`
}

// AlertRefSource carries the transaction and agent the alert originated from.
type AlertRefSource struct {
	TransactionHash string    `json:"transactionHash"`
	Agent           *AgentRef `json:"agent,omitempty"`
}

// AgentRef identifies the detection bot that emitted an alert.
type AgentRef struct {
	ID string `json:"id"`
}

// Redacted returns a shallow copy of the event with every secret value masked,
// suitable for logging.
func (e *InboundEvent) Redacted() *InboundEvent {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Secrets != nil {
		cp.Secrets = make(map[string]any, len(e.Secrets))
		for k := range e.Secrets {
			cp.Secrets[k] = "[redacted]"
		}
	}
	return &cp
}

// Result is what every invocation returns to its caller. The relay's effects
// are entirely side effects, so it carries no fields.
type Result struct{}
