package currency

import "github.com/shopspring/decimal"

// DefaultBase is the canonical storage currency.
const DefaultBase = "EUR"

// Format describes how a currency is written for its users.
type Format struct {
	Prefix  string
	Suffix  string
	Group   string
	Decimal string
}

// Currency is one row of the static rate table. Rate is units of this
// currency per one unit of DefaultBase.
type Currency struct {
	Code   string
	Rate   decimal.Decimal
	Places int32
	Format Format
}

// Approximate static rates; display conversion is informational only.
var defaultRates = []struct {
	code   string
	rate   string
	format Format
}{
	{"EUR", "1", Format{Suffix: " €", Group: ".", Decimal: ","}},
	{"RON", "4.97", Format{Suffix: " lei", Group: ".", Decimal: ","}},
	{"USD", "1.08", Format{Prefix: "$", Group: ",", Decimal: "."}},
	{"GBP", "0.85", Format{Prefix: "£", Group: ",", Decimal: "."}},
	{"CHF", "0.94", Format{Prefix: "CHF ", Group: "'", Decimal: "."}},
	{"HUF", "395", Format{Suffix: " Ft", Group: " ", Decimal: ","}},
	{"PLN", "4.30", Format{Suffix: " zł", Group: " ", Decimal: ","}},
	{"BGN", "1.9558", Format{Suffix: " лв.", Group: " ", Decimal: ","}},
	{"MDL", "19.40", Format{Suffix: " L", Group: " ", Decimal: ","}},
	{"JPY", "162", Format{Prefix: "¥", Group: ",", Decimal: "."}},
}

// DefaultTable returns the built-in rate table keyed by ISO code.
func DefaultTable() map[string]Currency {
	table := make(map[string]Currency, len(defaultRates))
	for _, r := range defaultRates {
		table[r.code] = Currency{
			Code:   r.code,
			Rate:   decimal.RequireFromString(r.rate),
			Places: -1,
			Format: r.format,
		}
	}
	return table
}
