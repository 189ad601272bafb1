// Package normalize converts the raw field strings of a classified message
// into a typed, fully resolved ParsedCandidate.
package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/blueledger/mpesa-ingest-go/internal/catalog"
	"github.com/blueledger/mpesa-ingest-go/internal/domain"

	"github.com/shopspring/decimal"
)

// Normalize turns an extraction into a ParsedCandidate. It is pure and total
// over anything the classifier can produce: the only failure mode is a
// field-level parse error, which is fatal to this single message only.
func Normalize(ex *catalog.Extraction) (*domain.ParsedCandidate, error) {
	amount, err := parseAmount("amount", ex.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, &domain.ErrParse{Field: "amount", Value: ex.Amount, Message: "amount must be positive"}
	}

	ts, err := parseTimestamp(ex.Date, ex.Time)
	if err != nil {
		return nil, err
	}

	candidate := &domain.ParsedCandidate{
		Direction:     ex.Direction,
		Amount:        amount,
		Currency:      catalog.ProviderCurrency,
		Timestamp:     ts,
		Description:   ex.Description,
		Counterparty:  ex.Counterparty,
		ReferenceCode: ex.ReferenceCode,
	}

	if ex.BalanceAfter != "" {
		balance, err := parseAmount("balanceAfter", ex.BalanceAfter)
		if err != nil {
			return nil, err
		}
		candidate.BalanceAfter = &balance
	}

	return candidate, nil
}

// parseAmount parses a provider-localized amount string ("1,500.00") into a
// decimal, stripping grouping separators first.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, &domain.ErrParse{Field: field, Value: raw, Message: "not a number"}
	}
	return d, nil
}

// parseTimestamp combines a locale-specific M/D/Y date and a 12-hour clock
// time into one absolute local timestamp. Provider timestamps are already in
// the ledger's local zone, so no conversion happens here.
func parseTimestamp(dateStr, timeStr string) (time.Time, error) {
	month, day, year, err := parseDate(dateStr)
	if err != nil {
		return time.Time{}, err
	}
	hour, minute, err := parseClock(timeStr)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local), nil
}

// parseDate parses "M/D/Y" or "M/D/YY". A 2-digit year means 2000+year; no
// further century disambiguation.
func parseDate(s string) (month, day, year int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return 0, 0, 0, &domain.ErrParse{Field: "date", Value: s, Message: "expected M/D/Y"}
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return 0, 0, 0, &domain.ErrParse{Field: "date", Value: s, Message: "non-numeric component"}
		}
		nums[i] = n
	}
	month, day, year = nums[0], nums[1], nums[2]
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, 0, 0, &domain.ErrParse{Field: "date", Value: s, Message: "out of range"}
	}
	return month, day, year, nil
}

// parseClock parses "H:MM AM|PM" into a 24-hour hour and minute, applying
// the standard noon/midnight corrections: 12 AM is hour 0, 12 PM stays 12,
// other PM hours gain 12.
func parseClock(s string) (hour, minute int, err error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, &domain.ErrParse{Field: "time", Value: s, Message: "expected H:MM AM/PM"}
	}
	clock, marker := fields[0], strings.ToUpper(fields[1])

	hm := strings.Split(clock, ":")
	if len(hm) != 2 {
		return 0, 0, &domain.ErrParse{Field: "time", Value: s, Message: "expected H:MM"}
	}
	hour, err1 := strconv.Atoi(hm[0])
	minute, err2 := strconv.Atoi(hm[1])
	if err1 != nil || err2 != nil || hour < 1 || hour > 12 || minute < 0 || minute > 59 {
		return 0, 0, &domain.ErrParse{Field: "time", Value: s, Message: "out of range"}
	}

	switch marker {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return 0, 0, &domain.ErrParse{Field: "time", Value: s, Message: "missing AM/PM marker"}
	}
	return hour, minute, nil
}
