package instrument

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Catalogue of tradeable instruments in canonical BASE_QUOTE form.
var catalogue = []string{
	"EUR_USD", "GBP_USD", "USD_JPY", "AUD_USD", "USD_CAD",
	"NZD_USD", "USD_CHF", "EUR_GBP", "EUR_JPY", "GBP_JPY",
	"AUD_JPY", "CAD_JPY", "CHF_JPY", "EUR_AUD", "EUR_CAD",
	"EUR_CHF", "EUR_NZD", "GBP_AUD", "GBP_CAD", "GBP_CHF",
	"GBP_NZD", "AUD_CAD", "AUD_CHF", "AUD_NZD", "CAD_CHF",
	"CAD_NZD", "CHF_NZD", "NZD_JPY",
}

// scanOrder holds every accepted spelling (canonical and compact), longest
// first and then lexicographic, so that scanning a message for tickers is
// deterministic regardless of catalogue declaration order.
var scanOrder []string

// compactToCanonical maps EURUSD -> EUR_USD.
var compactToCanonical = map[string]string{}

func init() {
	for _, s := range catalogue {
		compact := strings.ReplaceAll(s, "_", "")
		compactToCanonical[compact] = s
		scanOrder = append(scanOrder, s, compact)
	}
	sort.Slice(scanOrder, func(i, j int) bool {
		if len(scanOrder[i]) != len(scanOrder[j]) {
			return len(scanOrder[i]) > len(scanOrder[j])
		}
		return scanOrder[i] < scanOrder[j]
	})
}

// Normalize maps any accepted spelling (EURUSD, eur/usd, EUR_USD) to the
// canonical BASE_QUOTE form. The second return is false for instruments
// outside the catalogue.
func Normalize(symbol string) (string, bool) {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.ReplaceAll(s, "/", "_")

	if canonical, ok := compactToCanonical[s]; ok {
		return canonical, true
	}
	for _, c := range catalogue {
		if s == c {
			return c, true
		}
	}
	return "", false
}

// FindInText returns the first catalogue instrument appearing as a substring
// of the (already upper-cased) text, scanning longest spellings first.
func FindInText(text string) (string, bool) {
	for _, spelling := range scanOrder {
		if strings.Contains(text, spelling) {
			canonical, _ := Normalize(spelling)
			return canonical, true
		}
	}
	return "", false
}

// Precision returns the quote precision for an instrument: 3 decimal places
// for yen-quoted pairs, 5 everywhere else (including unrecognized symbols).
func Precision(symbol string) int32 {
	if strings.HasSuffix(strings.ToUpper(symbol), "_JPY") {
		return 3
	}
	return 5
}

// NormalizePrice rounds a price to the instrument's precision using half-up
// rounding.
func NormalizePrice(price float64, symbol string) float64 {
	rounded, _ := decimal.NewFromFloat(price).Round(Precision(symbol)).Float64()
	return rounded
}
