// Package catalog holds the ordered template catalog for provider
// notification messages and the classifier that matches raw bodies
// against it.
package catalog

import (
	"regexp"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
)

// FieldRule resolves one logical field from the capture groups of a matched
// template. Exactly one variant is active: Group copies capture group N
// verbatim, Derive synthesizes the value from all captured groups. The zero
// value means the field is absent for this template.
type FieldRule struct {
	Group  int
	Derive func(groups []string) string
}

// FromGroup returns a rule that copies capture group n.
func FromGroup(n int) FieldRule {
	return FieldRule{Group: n}
}

// Derived returns a rule that synthesizes the field via fn. fn receives the
// full submatch slice (index 0 is the whole match) and must be pure.
func Derived(fn func(groups []string) string) FieldRule {
	return FieldRule{Derive: fn}
}

func (r FieldRule) resolve(groups []string) string {
	if r.Derive != nil {
		return r.Derive(groups)
	}
	if r.Group > 0 && r.Group < len(groups) {
		return groups[r.Group]
	}
	return ""
}

// FieldMap binds the logical extraction fields to per-template rules.
// Description must always be a derive rule; ReferenceCode, Counterparty and
// BalanceAfter may be left absent.
type FieldMap struct {
	ReferenceCode FieldRule
	Amount        FieldRule
	Counterparty  FieldRule
	Date          FieldRule
	Time          FieldRule
	BalanceAfter  FieldRule
	Description   FieldRule
}

// Template is one message shape: an anchored pattern plus the recipe that
// turns its capture groups into raw extraction fields. Templates are
// immutable after catalog construction.
type Template struct {
	Name      string
	Direction domain.Direction
	Pattern   *regexp.Regexp
	Fields    FieldMap
}

// Extraction carries the raw (still provider-localized) field strings pulled
// out of a matched message. The normalizer turns it into a ParsedCandidate.
type Extraction struct {
	Template      string
	Direction     domain.Direction
	ReferenceCode string
	Amount        string
	Counterparty  string
	Date          string
	Time          string
	BalanceAfter  string
	Description   string
}

// Catalog is an ordered list of templates. Ordering is the precedence
// contract: Classify returns the first structural match, so authors must
// register more specific templates before less specific ones. Two templates
// matching the same message is acceptable, not an error.
type Catalog struct {
	templates []Template
}

// New builds a catalog from templates in registration order.
func New(templates ...Template) *Catalog {
	return &Catalog{templates: templates}
}

// Len reports the number of registered templates.
func (c *Catalog) Len() int {
	return len(c.templates)
}

// Classify matches body against the catalog in order and returns the first
// structural match with its raw fields resolved. ok is false when no
// template matches; the caller owns logging the body for catalog
// maintenance. Classify never fails on malformed input, it just reports
// no match.
func (c *Catalog) Classify(body string) (*Extraction, bool) {
	for _, t := range c.templates {
		groups := t.Pattern.FindStringSubmatch(body)
		if groups == nil {
			continue
		}
		return &Extraction{
			Template:      t.Name,
			Direction:     t.Direction,
			ReferenceCode: t.Fields.ReferenceCode.resolve(groups),
			Amount:        t.Fields.Amount.resolve(groups),
			Counterparty:  t.Fields.Counterparty.resolve(groups),
			Date:          t.Fields.Date.resolve(groups),
			Time:          t.Fields.Time.resolve(groups),
			BalanceAfter:  t.Fields.BalanceAfter.resolve(groups),
			Description:   t.Fields.Description.resolve(groups),
		}, true
	}
	return nil, false
}
