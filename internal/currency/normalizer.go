// Package currency converts canonical minor-unit amounts to a requester's
// display currency and back.
package currency

import (
	"math"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/sudo-init-do/lexhub/internal/apperr"
	"github.com/sudo-init-do/lexhub/internal/logging"
)

// A display currency whose minor unit is worth more than this many canonical
// minor units cannot round-trip within one minor unit, so it is not offered.
var minDisplayRatio = decimal.NewFromFloat(0.5)

var maxCanonical = decimal.NewFromInt(math.MaxInt64)

// Quote is a canonical amount rendered in a display currency.
type Quote struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Display  string `json:"display"`
	// Fallback is set when the requested currency was unknown and the base
	// currency was used instead.
	Fallback bool `json:"fallback,omitempty"`
}

// Normalizer holds the rate table, rebased on the canonical currency.
type Normalizer struct {
	base  Currency
	table map[string]Currency
	log   *logging.Logger
}

// NewNormalizer builds a normalizer storing amounts in minor units of baseCode.
// Rates in table may be expressed against any reference currency present in
// the table; they are rebased on baseCode.
func NewNormalizer(baseCode string, table map[string]Currency, log *logging.Logger) (*Normalizer, error) {
	if log == nil {
		log = logging.Nop()
	}
	baseCode = normalizeCode(baseCode)
	ref, ok := table[baseCode]
	if !ok {
		return nil, apperr.Newf(apperr.KindValidation, "currency.new", "base currency %q missing from rate table", baseCode)
	}
	if !ref.Rate.IsPositive() {
		return nil, apperr.Newf(apperr.KindValidation, "currency.new", "base currency %q has non-positive rate", baseCode)
	}

	ref.Code = baseCode
	base, err := resolve(ref)
	if err != nil {
		return nil, err
	}
	base.Rate = decimal.NewFromInt(1)

	n := &Normalizer{base: base, table: make(map[string]Currency, len(table)), log: log}
	for code, c := range table {
		c.Code = normalizeCode(code)
		if !c.Rate.IsPositive() {
			return nil, apperr.Newf(apperr.KindValidation, "currency.new", "currency %q has non-positive rate", c.Code)
		}
		c, err = resolve(c)
		if err != nil {
			return nil, err
		}
		c.Rate = c.Rate.Div(ref.Rate)
		if c.Code == base.Code {
			c.Rate = base.Rate
		}

		ratio := c.Rate.Shift(c.Places - base.Places)
		if ratio.LessThan(minDisplayRatio) {
			log.Warn("display currency too coarse for canonical unit, not offered",
				"currency", c.Code, "base", base.Code, "ratio", ratio.String())
			continue
		}
		n.table[c.Code] = c
	}
	return n, nil
}

// Base returns the canonical currency code.
func (n *Normalizer) Base() string {
	return n.base.Code
}

// Supported reports whether code has its own rate (no fallback).
func (n *Normalizer) Supported(code string) bool {
	_, ok := n.table[normalizeCode(code)]
	return ok
}

// Codes lists supported currency codes.
func (n *Normalizer) Codes() []string {
	codes := make([]string, 0, len(n.table))
	for code := range n.table {
		codes = append(codes, code)
	}
	return codes
}

// ToDisplay renders a canonical amount in the target currency.
func (n *Normalizer) ToDisplay(amount int64, code string) (string, error) {
	q, err := n.Quote(amount, code)
	if err != nil {
		return "", err
	}
	return q.Display, nil
}

// Quote converts and formats a canonical amount. An empty code means the base
// currency. Unknown currencies degrade to the base currency with a warning.
func (n *Normalizer) Quote(amount int64, code string) (Quote, error) {
	if amount < 0 {
		return Quote{}, apperr.Newf(apperr.KindValidation, "currency.display", "amount %d is negative", amount)
	}
	c, fallback := n.lookup(code)

	value := decimal.New(amount, -n.base.Places).Mul(c.Rate).Round(c.Places)
	return Quote{
		Amount:   amount,
		Currency: c.Code,
		Display:  format(value, c),
		Fallback: fallback,
	}, nil
}

// ToCanonical parses an amount written in code's display format and converts
// it to canonical minor units, rounding half away from zero.
func (n *Normalizer) ToCanonical(display, code string) (int64, error) {
	c, _ := n.lookup(code)

	value, err := parse(display, c)
	if err != nil {
		return 0, err
	}

	minor := value.Div(c.Rate).Shift(n.base.Places).Round(0)
	if minor.GreaterThan(maxCanonical) {
		return 0, apperr.Newf(apperr.KindValidation, "currency.canonical", "amount %q is too large", display)
	}
	return minor.IntPart(), nil
}

func (n *Normalizer) lookup(code string) (Currency, bool) {
	norm := normalizeCode(code)
	if norm == "" {
		return n.base, false
	}
	if c, ok := n.table[norm]; ok {
		return c, false
	}
	n.log.Warn("unknown currency, falling back to base",
		"currency", code, "base", n.base.Code, "kind", apperr.KindUnknownCurrency)
	return n.base, true
}

// resolve fills Places from the ISO 4217 standard rounding when unset.
func resolve(c Currency) (Currency, error) {
	unit, err := currency.ParseISO(c.Code)
	if err != nil {
		return c, apperr.Wrap(apperr.KindValidation, "currency.resolve", err)
	}
	if c.Places < 0 {
		scale, _ := currency.Standard.Rounding(unit)
		c.Places = int32(scale)
	}
	return c, nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func format(value decimal.Decimal, c Currency) string {
	fixed := value.StringFixed(c.Places)
	intPart, frac, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	b.WriteString(c.Format.Prefix)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(c.Format.Group)
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString(c.Format.Decimal)
		b.WriteString(frac)
	}
	b.WriteString(c.Format.Suffix)
	return b.String()
}

func parse(display string, c Currency) (decimal.Decimal, error) {
	malformed := apperr.Newf(apperr.KindValidation, "currency.canonical", "malformed amount %q", display)

	s := display
	for _, affix := range []string{c.Format.Prefix, c.Format.Suffix, c.Code} {
		if t := strings.TrimSpace(affix); t != "" {
			s = strings.ReplaceAll(s, t, "")
		}
	}
	s = strings.TrimSpace(s)

	group := c.Format.Group
	if strings.TrimSpace(group) == "" {
		group = " "
		s = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return ' '
			}
			return r
		}, s)
	}

	intPart, frac, hasFrac := strings.Cut(s, c.Format.Decimal)
	if intPart == "" || (hasFrac && frac == "") || !isDigits(frac) {
		return decimal.Decimal{}, malformed
	}
	// Group separators are only valid between 3-digit groups of the integer part.
	groups := strings.Split(intPart, group)
	for i, g := range groups {
		if !isDigits(g) || g == "" || (i > 0 && len(g) != 3) || (i == 0 && len(groups) > 1 && len(g) > 3) {
			return decimal.Decimal{}, malformed
		}
	}

	digits := strings.Join(groups, "")
	if hasFrac {
		digits += "." + frac
	}
	value, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Decimal{}, malformed
	}
	return value, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
