// Package metrics holds the relay's Prometheus counters.
package metrics

import (
	"io"
	"time"

	vm "github.com/VictoriaMetrics/metrics"
)

// Event outcomes.
const (
	OutcomeNoop      = "noop"
	OutcomeProcessed = "processed"
	OutcomeFailed    = "failed"
)

var (
	alertsFetched     = vm.NewCounter(`fortarelay_forta_alerts_fetched_total`)
	alertsMatched     = vm.NewCounter(`fortarelay_forta_alerts_matched_total`)
	fortaErrors       = vm.NewCounter(`fortarelay_forta_query_errors_total`)
	fortaDuration     = vm.NewSummary(`fortarelay_forta_query_duration_seconds`)
	webhookDelivered  = vm.NewCounter(`fortarelay_webhook_delivered_total`)
	webhookFailed     = vm.NewCounter(`fortarelay_webhook_failed_total`)
	webhookRateLimits = vm.NewCounter(`fortarelay_webhook_rate_limited_total`)
)

// RecordEvent counts one handled event by outcome.
func RecordEvent(outcome string) {
	vm.GetOrCreateCounter(`fortarelay_events_total{outcome="` + outcome + `"}`).Inc()
}

// RecordNoop counts an event dropped for a missing field.
func RecordNoop(reason string) {
	RecordEvent(OutcomeNoop)
	vm.GetOrCreateCounter(`fortarelay_events_noop_total{reason="` + reason + `"}`).Inc()
}

// RecordQuery records one Forta query.
func RecordQuery(start time.Time, fetched int, err error) {
	fortaDuration.UpdateDuration(start)
	if err != nil {
		fortaErrors.Inc()
		return
	}
	alertsFetched.Add(fetched)
}

// RecordMatched counts alerts kept after hash filtering.
func RecordMatched(n int) {
	alertsMatched.Add(n)
}

// RecordDelivery counts one finished webhook delivery.
func RecordDelivery(err error) {
	if err != nil {
		webhookFailed.Inc()
		return
	}
	webhookDelivered.Inc()
}

// RecordRateLimited counts a 429 from the webhook.
func RecordRateLimited() {
	webhookRateLimits.Inc()
}

// WritePrometheus writes all metrics in Prometheus text format.
func WritePrometheus(w io.Writer) {
	vm.WritePrometheus(w, true)
}
