package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arbitraryexecution/forta-relay/internal/forta"
	"github.com/arbitraryexecution/forta-relay/internal/notify"
	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

const secretName = "FortaSentinelTestingDiscord"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type discordStub struct {
	mu       sync.Mutex
	contents []string
	statuses []int
	times    []time.Time
}

func (d *discordStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content string `json:"content"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.contents = append(d.contents, body.Content)
	d.times = append(d.times, time.Now())
	status := http.StatusNoContent
	if n := len(d.times) - 1; n < len(d.statuses) {
		status = d.statuses[n]
	}
	w.WriteHeader(status)
}

func fortaStub(t *testing.T, hits *atomic.Int32, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func newHandler(fortaURL string, retryDelay time.Duration) *Handler {
	client := forta.NewClient(forta.ClientOptions{Endpoint: fortaURL, Logger: quietLogger})
	return New(Options{
		SecretName: secretName,
		Correlator: forta.NewCorrelator(forta.CorrelatorOptions{Querier: client, Logger: quietLogger}),
		Formatter:  notify.NewFormatter(""),
		Dispatcher: notify.NewDispatcher(
			notify.NewWebhookSender(notify.WebhookSenderOptions{RetryDelay: retryDelay, Logger: quietLogger}),
			quietLogger,
		),
		Logger: quietLogger,
	})
}

func eventJSON(webhookURL string) string {
	return fmt.Sprintf(`{
  "secrets": {%q: %q},
  "request": {"body": {"alert": {
    "hash": "0xabc",
    "source": {"transactionHash": "0xtx1", "agent": {"id": "0xagent"}}
  }}}
}`, secretName, webhookURL)
}

const twoAlerts = `{"data": {"alerts": {"pageInfo": {"hasNextPage": false}, "alerts": [
  {"hash": "0xabc", "source": {"transactionHash": "0xtx1", "agent": {"id": "0xagent"}},
   "metadata": {"compAccrued": "0", "compDistributed": "100", "receiver": "0x8F077BbA8221Edd9faaaE96668F17b47F1Cb9e5d"}},
  {"hash": "0xdef", "source": {"transactionHash": "0xtx1", "agent": {"id": "0xagent"}},
   "metadata": {"compAccrued": "5", "compDistributed": "10", "receiver": "0x1111111111"}}
]}}}`

func TestHandle_EndToEnd(t *testing.T) {
	var fortaHits atomic.Int32
	fs := fortaStub(t, &fortaHits, twoAlerts)
	defer fs.Close()

	discord := &discordStub{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	h := newHandler(fs.URL, 10*time.Millisecond)
	res, err := h.HandleRaw(context.Background(), []byte(eventJSON(ds.URL)))
	if err != nil {
		t.Fatalf("HandleRaw() error = %v", err)
	}
	if res != (models.Result{}) {
		t.Errorf("HandleRaw() result = %+v, want empty", res)
	}

	if fortaHits.Load() != 1 {
		t.Errorf("forta queried %d times, want 1", fortaHits.Load())
	}
	if len(discord.contents) != 1 {
		t.Fatalf("delivered %d messages, want exactly 1: %v", len(discord.contents), discord.contents)
	}
	msg := discord.contents[0]
	want := "[TX](<https://etherscan.io/tx/0xtx1>) 🌊 **0x8F07** previously had no COMP accrued and was just distributed COMP tokens"
	if msg != want {
		t.Errorf("message = %q, want %q", msg, want)
	}
}

func TestHandle_PercentageMessage(t *testing.T) {
	var fortaHits atomic.Int32
	fs := fortaStub(t, &fortaHits, `{"data": {"alerts": {"alerts": [
  {"hash": "0xabc", "metadata": {"compAccrued": "4989396791922", "compDistributed": "4989396791922", "receiver": "0xDEADbeef00"}}
]}}}`)
	defer fs.Close()

	discord := &discordStub{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	h := newHandler(fs.URL, 10*time.Millisecond)
	if _, err := h.HandleRaw(context.Background(), []byte(eventJSON(ds.URL))); err != nil {
		t.Fatalf("HandleRaw() error = %v", err)
	}
	if len(discord.contents) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(discord.contents))
	}
	if !strings.Contains(discord.contents[0], "**100%** more COMP distributed to **0xDEAD** than expected") {
		t.Errorf("message = %q", discord.contents[0])
	}
}

func TestHandle_MissingFieldsMakeNoCalls(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `garbage`},
		{name: "null", raw: `null`},
		{name: "no secrets", raw: `{"request":{"body":{"alert":{"hash":"0xabc","source":{"transactionHash":"0x1","agent":{"id":"a"}}}}}}`},
		{name: "no webhook secret", raw: `{"secrets":{"Other":"x"},"request":{"body":{"alert":{"hash":"0xabc"}}}}`},
		{name: "no request", raw: `{"secrets":{"FortaSentinelTestingDiscord":"http://x"}}`},
		{name: "no body", raw: `{"secrets":{"FortaSentinelTestingDiscord":"http://x"},"request":{}}`},
		{name: "no alert", raw: `{"secrets":{"FortaSentinelTestingDiscord":"http://x"},"request":{"body":{}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fortaHits atomic.Int32
			fs := fortaStub(t, &fortaHits, twoAlerts)
			defer fs.Close()

			h := newHandler(fs.URL, 10*time.Millisecond)
			res, err := h.HandleRaw(context.Background(), []byte(tt.raw))
			if err != nil {
				t.Fatalf("HandleRaw() error = %v, want nil", err)
			}
			if res != (models.Result{}) {
				t.Errorf("HandleRaw() result = %+v, want empty", res)
			}
			if fortaHits.Load() != 0 {
				t.Errorf("forta queried %d times, want 0", fortaHits.Load())
			}
		})
	}
}

func TestHandle_NilEvent(t *testing.T) {
	h := newHandler("http://127.0.0.1:1", 10*time.Millisecond)
	if _, err := h.Handle(context.Background(), nil); err != nil {
		t.Fatalf("Handle(nil) error = %v", err)
	}
}

func TestHandle_NoDataIsNoop(t *testing.T) {
	var fortaHits atomic.Int32
	fs := fortaStub(t, &fortaHits, `{}`)
	defer fs.Close()

	discord := &discordStub{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	h := newHandler(fs.URL, 10*time.Millisecond)
	if _, err := h.HandleRaw(context.Background(), []byte(eventJSON(ds.URL))); err != nil {
		t.Fatalf("HandleRaw() error = %v, want nil", err)
	}
	if len(discord.contents) != 0 {
		t.Errorf("delivered %d messages, want 0", len(discord.contents))
	}
}

func TestHandle_RateLimitedThenDelivered(t *testing.T) {
	var fortaHits atomic.Int32
	fs := fortaStub(t, &fortaHits, twoAlerts)
	defer fs.Close()

	discord := &discordStub{statuses: []int{http.StatusTooManyRequests, http.StatusOK}}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	delay := 150 * time.Millisecond
	h := newHandler(fs.URL, delay)
	if _, err := h.HandleRaw(context.Background(), []byte(eventJSON(ds.URL))); err != nil {
		t.Fatalf("HandleRaw() error = %v", err)
	}
	if len(discord.times) != 2 {
		t.Fatalf("webhook attempts = %d, want 2", len(discord.times))
	}
	if gap := discord.times[1].Sub(discord.times[0]); gap < delay {
		t.Errorf("retry gap = %v, want >= %v", gap, delay)
	}
}

func TestHandle_DeliveryFailureFailsInvocation(t *testing.T) {
	var fortaHits atomic.Int32
	fs := fortaStub(t, &fortaHits, twoAlerts)
	defer fs.Close()

	discord := &discordStub{statuses: []int{http.StatusInternalServerError}}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	h := newHandler(fs.URL, 10*time.Millisecond)
	_, err := h.HandleRaw(context.Background(), []byte(eventJSON(ds.URL)))

	var statusErr *notify.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("HandleRaw() error = %v, want StatusError 500", err)
	}
	if len(discord.times) != 1 {
		t.Errorf("webhook attempts = %d, want 1", len(discord.times))
	}
}

func TestHandle_QueryFailureFailsInvocation(t *testing.T) {
	fs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer fs.Close()

	discord := &discordStub{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	h := newHandler(fs.URL, 10*time.Millisecond)
	_, err := h.HandleRaw(context.Background(), []byte(eventJSON(ds.URL)))

	var apiErr *forta.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("HandleRaw() error = %v, want *forta.APIError", err)
	}
	if len(discord.contents) != 0 {
		t.Errorf("delivered %d messages, want 0", len(discord.contents))
	}
}

func TestHandle_FormatFailureSkipsDelivery(t *testing.T) {
	var fortaHits atomic.Int32
	fs := fortaStub(t, &fortaHits, `{"data": {"alerts": {"alerts": [
  {"hash": "0xabc", "metadata": {"compAccrued": "lots", "compDistributed": "1", "receiver": "0x1"}}
]}}}`)
	defer fs.Close()

	discord := &discordStub{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	h := newHandler(fs.URL, 10*time.Millisecond)
	if _, err := h.HandleRaw(context.Background(), []byte(eventJSON(ds.URL))); err == nil {
		t.Fatal("HandleRaw() expected format error, got nil")
	}
	if len(discord.contents) != 0 {
		t.Errorf("delivered %d messages, want 0", len(discord.contents))
	}
}

func TestHandle_UnrelatedNonStringSecretStillDelivers(t *testing.T) {
	var fortaHits atomic.Int32
	fs := fortaStub(t, &fortaHits, twoAlerts)
	defer fs.Close()

	discord := &discordStub{}
	ds := httptest.NewServer(discord)
	defer ds.Close()

	raw := fmt.Sprintf(`{
  "secrets": {%q: %q, "Retries": 3},
  "request": {"body": {"alert": {"hash": "0xabc", "source": {"transactionHash": "0xtx1", "agent": {"id": "0xagent"}}}}}
}`, secretName, ds.URL)

	h := newHandler(fs.URL, 10*time.Millisecond)
	if _, err := h.HandleRaw(context.Background(), []byte(raw)); err != nil {
		t.Fatalf("HandleRaw() error = %v", err)
	}
	if fortaHits.Load() != 1 {
		t.Errorf("forta queried %d times, want 1", fortaHits.Load())
	}
	if len(discord.contents) != 1 {
		t.Errorf("delivered %d messages, want 1", len(discord.contents))
	}
}
