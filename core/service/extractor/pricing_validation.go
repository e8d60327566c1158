package extractor

import (
	"fmt"
	"math"
	"strings"
)

// =============================================================================
// Anti-Hallucination Validation
// =============================================================================
//
// The oracle is untrusted by design. Every number it returns must be
// independently re-located in the source content under a strict pattern:
// a currency symbol adjacent, a currency code adjacent, or a price keyword
// or negotiation phrase within a short window. A number that cannot be
// grounded is treated as no evidence.

const keywordProximity = 80 // chars around the number to scan for keywords

var currencySymbols = []string{"$", "€", "£"}

var currencyCodes = []string{"usd", "eur", "gbp", "aud", "cad"}

// priceKeywords ground a bare number as a price when no currency marker sits
// next to it.
var priceKeywords = []string{
	"price", "cost", "rate", "fee", "charge", "payment", "quote",
	"agreed", "deal", "final", "per post", "per article", "per link",
}

// PriceExistsInContent reports whether the price is textually grounded in
// the content under the strict pattern rules.
func PriceExistsInContent(content string, price float64) bool {
	_, ok := locatePrice(content, price)
	return ok
}

// locatePrice returns the grounded textual match for audit purposes.
func locatePrice(content string, price float64) (string, bool) {
	if price <= 0 || content == "" {
		return "", false
	}
	lower := strings.ToLower(content)

	for _, rendering := range priceRenderings(price) {
		from := 0
		for {
			idx := strings.Index(lower[from:], rendering)
			if idx < 0 {
				break
			}
			idx += from
			end := idx + len(rendering)

			// Reject partial-number matches: "200" inside "12000".
			if hasAdjacentDigit(lower, idx, end) {
				from = end
				continue
			}
			if groundedAt(lower, idx, end) {
				return snippetAround(content, idx, end), true
			}
			from = end
		}
	}
	return "", false
}

// priceRenderings enumerates textual forms the price may take in the source.
func priceRenderings(price float64) []string {
	var out []string
	if price == math.Trunc(price) {
		n := int64(price)
		out = append(out, fmt.Sprintf("%d", n))
		if n >= 1000 {
			out = append(out, groupThousands(n))
		}
		out = append(out, fmt.Sprintf("%d.00", n))
	} else {
		out = append(out, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", price), "0"), "."))
		out = append(out, fmt.Sprintf("%.2f", price))
	}
	return out
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func hasAdjacentDigit(s string, start, end int) bool {
	if start > 0 && isDigit(s[start-1]) {
		return true
	}
	if start > 1 && s[start-1] == ',' && isDigit(s[start-2]) {
		return true
	}
	if end < len(s) && (isDigit(s[end]) || s[end] == ',' && end+1 < len(s) && isDigit(s[end+1])) {
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// groundedAt checks the strict adjacency rules for a number occurrence.
func groundedAt(lower string, start, end int) bool {
	// Currency symbol directly adjacent (allowing one space).
	for _, sym := range currencySymbols {
		if nearbyBefore(lower, start, sym, 2) || nearbyAfter(lower, end, sym, 2) {
			return true
		}
	}
	// Currency code within a few characters.
	for _, code := range currencyCodes {
		if nearbyBefore(lower, start, code, 6) || nearbyAfter(lower, end, code, 6) {
			return true
		}
	}
	// Price keyword or negotiation phrase in the proximity window.
	winStart := start - keywordProximity
	if winStart < 0 {
		winStart = 0
	}
	winEnd := end + keywordProximity
	if winEnd > len(lower) {
		winEnd = len(lower)
	}
	window := lower[winStart:winEnd]
	for _, kw := range priceKeywords {
		if strings.Contains(window, kw) {
			return true
		}
	}
	return false
}

func nearbyBefore(s string, pos int, needle string, dist int) bool {
	start := pos - len(needle) - dist
	if start < 0 {
		start = 0
	}
	return strings.Contains(s[start:pos], needle)
}

func nearbyAfter(s string, pos int, needle string, dist int) bool {
	end := pos + len(needle) + dist
	if end > len(s) {
		end = len(s)
	}
	return strings.Contains(s[pos:end], needle)
}

func snippetAround(content string, start, end int) string {
	s := start - 30
	if s < 0 {
		s = 0
	}
	e := end + 30
	if e > len(content) {
		e = len(content)
	}
	return content[s:e]
}
