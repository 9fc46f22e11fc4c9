// Package notify turns correlated alerts into Discord messages and delivers
// them.
package notify

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/arbitraryexecution/forta-relay/pkg/models"
)

// DefaultExplorerTxURL is the block explorer page prefix for transactions.
const DefaultExplorerTxURL = "https://etherscan.io/tx/"

const (
	receiverLabelLen = 6
	// percentPrecision bounds the fractional digits of non-terminating ratios.
	percentPrecision = 18
)

var hundred = decimal.NewFromInt(100)

// Formatter builds the message for one COMP distribution alert.
type Formatter struct {
	explorerTxURL string
}

// NewFormatter returns a Formatter linking transactions under explorerTxURL.
func NewFormatter(explorerTxURL string) *Formatter {
	if explorerTxURL == "" {
		explorerTxURL = DefaultExplorerTxURL
	}
	return &Formatter{explorerTxURL: explorerTxURL}
}

// Format parses the record's amounts and renders its message. txHash is the
// transaction of the inbound event.
func (f *Formatter) Format(record models.AlertRecord, txHash string) (string, error) {
	accrued, err := decimal.NewFromString(record.Metadata.CompAccrued)
	if err != nil {
		return "", fmt.Errorf("alert %s: invalid compAccrued %q: %w", record.Hash, record.Metadata.CompAccrued, err)
	}
	distributed, err := decimal.NewFromString(record.Metadata.CompDistributed)
	if err != nil {
		return "", fmt.Errorf("alert %s: invalid compDistributed %q: %w", record.Hash, record.Metadata.CompDistributed, err)
	}
	return f.FormatAmounts(accrued, distributed, record.Metadata.Receiver, txHash), nil
}

// FormatAmounts renders the message for already parsed amounts.
func (f *Formatter) FormatAmounts(accrued, distributed decimal.Decimal, receiver, txHash string) string {
	link := f.txLink(txHash)
	label := ReceiverLabel(receiver)

	// Nothing accrued means an unbounded percentage.
	if accrued.IsZero() || distributed.IsZero() {
		return fmt.Sprintf("%s 🌊 **%s** previously had no COMP accrued and was just distributed COMP tokens", link, label)
	}

	return fmt.Sprintf("%s 🌊 **%s%%** more COMP distributed to **%s** than expected",
		link, Percentage(accrued, distributed), label)
}

// Percentage returns distributed / accrued * 100 in plain decimal notation
// with trailing zeros trimmed. accrued must be non-zero.
func Percentage(accrued, distributed decimal.Decimal) string {
	return distributed.Mul(hundred).DivRound(accrued, percentPrecision).String()
}

// ReceiverLabel is the first six characters of an address, for display only.
func ReceiverLabel(receiver string) string {
	r := []rune(receiver)
	if len(r) <= receiverLabelLen {
		return receiver
	}
	return string(r[:receiverLabelLen])
}

func (f *Formatter) txLink(txHash string) string {
	return fmt.Sprintf("[TX](<%s/%s>)", strings.TrimSuffix(f.explorerTxURL, "/"), txHash)
}
