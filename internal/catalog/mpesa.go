package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
)

// Provider constants for M-Pesa confirmations.
const (
	ProviderName     = "M-Pesa"
	ProviderCurrency = "KES"
)

// IsProviderMessage reports whether a raw message is attributable to M-Pesa,
// by sender id or by body content. Anything else is skipped before
// classification.
func IsProviderMessage(msg domain.RawMessage) bool {
	return strings.Contains(msg.Origin, "M-PESA") ||
		strings.Contains(msg.Origin, "MPESA") ||
		strings.Contains(msg.Body, "M-PESA")
}

// Every M-Pesa confirmation follows the same structural envelope: the
// provider reference code opens the message and the post-balance closes it.
// The shared fragments below keep the per-template patterns in step.
const (
	refCode  = `^([A-Z0-9]+) Confirmed\.?\s*`
	dateTime = ` on (\d{1,2}/\d{1,2}/\d{2,4}) at (\d{1,2}:\d{2} (?:AM|PM))`
	balance  = `\.? New M-PESA balance is Ksh([\d,.]+)`
	amount   = `Ksh([\d,.]+)`
)

// NewMpesaCatalog builds the template catalog for M-Pesa confirmation SMS.
// Order matters: the bill payment with an account reference must precede the
// plain merchant payment, since the latter also matches paybill bodies.
func NewMpesaCatalog() *Catalog {
	return New(
		Template{
			Name:      "peer-received",
			Direction: domain.Income,
			Pattern: regexp.MustCompile(refCode +
				`You (?:have )?received ` + amount + ` from ([A-Z\s]+) (\d+)` + dateTime + balance),
			Fields: FieldMap{
				ReferenceCode: FromGroup(1),
				Amount:        FromGroup(2),
				Counterparty:  FromGroup(3),
				Date:          FromGroup(5),
				Time:          FromGroup(6),
				BalanceAfter:  FromGroup(7),
				Description: Derived(func(g []string) string {
					return "Received from " + g[3]
				}),
			},
		},
		Template{
			Name:      "peer-sent",
			Direction: domain.Expense,
			Pattern: regexp.MustCompile(refCode +
				amount + ` sent to (.+?)(?: \d+)?` + dateTime + balance),
			Fields: FieldMap{
				ReferenceCode: FromGroup(1),
				Amount:        FromGroup(2),
				Counterparty:  FromGroup(3),
				Date:          FromGroup(4),
				Time:          FromGroup(5),
				BalanceAfter:  FromGroup(6),
				Description: Derived(func(g []string) string {
					return "Sent to " + g[3]
				}),
			},
		},
		Template{
			Name:      "bill-payment",
			Direction: domain.Expense,
			Pattern: regexp.MustCompile(refCode +
				amount + ` paid to (.+?) for account (.+?)` + dateTime + balance),
			Fields: FieldMap{
				ReferenceCode: FromGroup(1),
				Amount:        FromGroup(2),
				Counterparty:  FromGroup(3),
				Date:          FromGroup(5),
				Time:          FromGroup(6),
				BalanceAfter:  FromGroup(7),
				Description: Derived(func(g []string) string {
					return fmt.Sprintf("Paid to %s (Acc: %s)", g[3], g[4])
				}),
			},
		},
		Template{
			Name:      "merchant-payment",
			Direction: domain.Expense,
			Pattern: regexp.MustCompile(refCode +
				amount + ` paid to (.+?)` + dateTime + balance),
			Fields: FieldMap{
				ReferenceCode: FromGroup(1),
				Amount:        FromGroup(2),
				Counterparty:  FromGroup(3),
				Date:          FromGroup(4),
				Time:          FromGroup(5),
				BalanceAfter:  FromGroup(6),
				Description: Derived(func(g []string) string {
					return "Paid to " + g[3]
				}),
			},
		},
		Template{
			Name:      "airtime-purchase",
			Direction: domain.Expense,
			Pattern: regexp.MustCompile(refCode +
				amount + ` airtime bought for (\d+)` + dateTime + balance),
			Fields: FieldMap{
				ReferenceCode: FromGroup(1),
				Amount:        FromGroup(2),
				Counterparty: Derived(func(g []string) string {
					return "Airtime for " + g[3]
				}),
				Date:         FromGroup(4),
				Time:         FromGroup(5),
				BalanceAfter: FromGroup(6),
				Description: Derived(func(g []string) string {
					return "Airtime for " + g[3]
				}),
			},
		},
		Template{
			Name:      "agent-withdrawal",
			Direction: domain.Expense,
			Pattern: regexp.MustCompile(refCode +
				amount + ` withdrawn from agent (\d+) at (\d+)` + dateTime + balance),
			Fields: FieldMap{
				ReferenceCode: FromGroup(1),
				Amount:        FromGroup(2),
				Counterparty: Derived(func(g []string) string {
					return "Agent " + g[3]
				}),
				Date:         FromGroup(5),
				Time:         FromGroup(6),
				BalanceAfter: FromGroup(7),
				Description: Derived(func(g []string) string {
					return "Withdrawal from Agent " + g[3]
				}),
			},
		},
	)
}
