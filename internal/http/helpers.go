package http

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// sanitizeInput removes control characters and invalid UTF-8 and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

// money renders an amount as a JSON number rounded half-up to cents.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// rate renders a rate as a JSON number with its full precision.
func rate(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
