package forta

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/arbitraryexecution/forta-relay/internal/metrics"
	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

// AlertQuerier fetches one page of alerts.
type AlertQuerier interface {
	RecentAlerts(ctx context.Context, input AlertsInput) (*AlertsPage, error)
}

// CorrelatorOptions configures a Correlator.
type CorrelatorOptions struct {
	Querier      AlertQuerier
	PageSize     int
	ChainID      int64
	CreatedSince int64
	Logger       *slog.Logger
}

// Correlator resolves an inbound alert reference to its full alert record.
type Correlator struct {
	querier      AlertQuerier
	pageSize     int
	chainID      int64
	createdSince int64
	log          *slog.Logger
}

// NewCorrelator constructs a Correlator. Zero page size and chain id fall back
// to 100 and mainnet.
func NewCorrelator(opts CorrelatorOptions) *Correlator {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	chainID := opts.ChainID
	if chainID == 0 {
		chainID = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		querier:      opts.Querier,
		pageSize:     pageSize,
		chainID:      chainID,
		createdSince: opts.CreatedSince,
		log:          logger.With("component", "alert_correlator"),
	}
}

// Correlate returns the alerts emitted by agentID in txHash whose hash equals
// alertHash. A transaction can emit several alerts; only the exact match is
// kept. Only the first page is fetched.
func (c *Correlator) Correlate(ctx context.Context, agentID, txHash, alertHash string) ([]models.AlertRecord, error) {
	start := time.Now()
	page, err := c.querier.RecentAlerts(ctx, AlertsInput{
		First:           c.pageSize,
		Agents:          []string{agentID},
		TransactionHash: txHash,
		CreatedSince:    c.createdSince,
		ChainID:         c.chainID,
	})
	if errors.Is(err, ErrNoData) {
		metrics.RecordQuery(start, 0, nil)
		c.log.Warn("forta response carried no data, treating as no alerts",
			"agent_id", agentID, "transaction_hash", txHash)
		return nil, nil
	}
	if err != nil {
		metrics.RecordQuery(start, 0, err)
		return nil, err
	}
	metrics.RecordQuery(start, len(page.Alerts), nil)

	if page.PageInfo.HasNextPage {
		c.log.Warn("more alerts exist beyond the first page and were not fetched",
			"agent_id", agentID,
			"transaction_hash", txHash,
			"page_size", c.pageSize,
			"end_cursor", page.PageInfo.EndCursor)
	}

	matched := FilterByHash(page.Alerts, alertHash)
	metrics.RecordMatched(len(matched))

	c.log.Info("correlated alerts",
		"alert_hash", alertHash,
		"fetched", len(page.Alerts),
		"matched", len(matched))
	return matched, nil
}

// FilterByHash keeps the records whose hash is exactly hash.
func FilterByHash(records []models.AlertRecord, hash string) []models.AlertRecord {
	out := make([]models.AlertRecord, 0, 1)
	for _, r := range records {
		if r.Hash == hash {
			out = append(out, r)
		}
	}
	return out
}
