package models

// Alert severities reported by Forta.
const (
	AlertSeverityUnknown  = "UNKNOWN"
	AlertSeverityInfo     = "INFO"
	AlertSeverityLow      = "LOW"
	AlertSeverityMedium   = "MEDIUM"
	AlertSeverityHigh     = "HIGH"
	AlertSeverityCritical = "CRITICAL"
)

// AlertRecord is a full alert as returned by the Forta public API. Several
// records can share a transaction hash; Hash is unique.
type AlertRecord struct {
	Hash        string        `json:"hash"`
	CreatedAt   string        `json:"createdAt"`
	Name        string        `json:"name"`
	Protocol    string        `json:"protocol"`
	FindingType string        `json:"findingType"`
	Severity    string        `json:"severity"`
	Description string        `json:"description"`
	Source      AlertSource   `json:"source"`
	Metadata    AlertMetadata `json:"metadata"`
}

// AlertSource locates the alert on chain.
type AlertSource struct {
	TransactionHash string   `json:"transactionHash"`
	Block           Block    `json:"block"`
	Agent           AgentRef `json:"agent"`
}

// Block is the block the alert's transaction was mined in.
type Block struct {
	Number  int64 `json:"number"`
	ChainID int64 `json:"chainId"`
}

// AlertMetadata holds the distribution bot's finding metadata. Amounts are
// decimal strings of on-chain integer magnitudes and must not be parsed as floats.
type AlertMetadata struct {
	CompAccrued     string `json:"compAccrued"`
	CompDistributed string `json:"compDistributed"`
	Receiver        string `json:"receiver"`
}
