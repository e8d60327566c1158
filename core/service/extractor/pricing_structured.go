// Package extractor turns one candidate email into at most one validated
// price candidate for a target domain.
package extractor

import (
	"strconv"
	"strings"
)

// =============================================================================
// Structured Table Lookup
// =============================================================================
//
// Publishers often attach a price sheet. When a sheet has a recognizable
// header row and a row for the target domain, the numbers are read straight
// out of the table: deterministic, high confidence, no oracle involved.

// StructuredHit is a price row lifted from a tabular attachment.
type StructuredHit struct {
	GuestPostPrice     *float64
	LinkInsertionPrice *float64
	HomepageLinkPrice  *float64
	CasinoPrice        *float64
	Currency           string
}

// HasAnyPrice reports whether at least one numeric price was found.
func (h *StructuredHit) HasAnyPrice() bool {
	return h.GuestPostPrice != nil || h.LinkInsertionPrice != nil ||
		h.HomepageLinkPrice != nil || h.CasinoPrice != nil
}

// priceColumn identifies which canonical field a sheet column feeds.
type priceColumn int

const (
	colNone priceColumn = iota
	colDomain
	colGuestPost
	colLinkInsertion
	colHomepage
	colCasino
)

// classifyHeader maps a header cell to a canonical column by keyword.
func classifyHeader(header string) priceColumn {
	h := strings.ToLower(header)
	switch {
	case strings.Contains(h, "domain") || strings.Contains(h, "website") || strings.Contains(h, "site"):
		return colDomain
	case strings.Contains(h, "casino") || strings.Contains(h, "igaming") || strings.Contains(h, "gambling"):
		return colCasino
	case strings.Contains(h, "homepage") || strings.Contains(h, "frontpage") || strings.Contains(h, "home page"):
		return colHomepage
	case strings.Contains(h, "link") && strings.Contains(h, "insert"):
		return colLinkInsertion
	case strings.Contains(h, "general") || strings.Contains(h, "standard"):
		// Generic niche column falls back to the guest post price.
		return colGuestPost
	case strings.Contains(h, "guest post") || strings.Contains(h, "price"):
		return colGuestPost
	}
	return colNone
}

// StructuredLookup scans parsed spreadsheet rows for the target domain and
// maps its row onto canonical price fields. Returns nil when the sheet has
// no usable header row or no row for the domain.
func StructuredLookup(rows [][]string, targetDomain string) *StructuredHit {
	if len(rows) < 2 {
		return nil
	}
	target := strings.ToLower(targetDomain)

	// Locate the header row: the first row naming a domain/site column.
	headerIdx := -1
	var columns []priceColumn
	for i, row := range rows {
		if i > 10 {
			break // headers live near the top
		}
		cols := make([]priceColumn, len(row))
		hasDomain := false
		for j, cell := range row {
			cols[j] = classifyHeader(cell)
			if cols[j] == colDomain {
				hasDomain = true
			}
		}
		if hasDomain {
			headerIdx = i
			columns = cols
			break
		}
	}
	if headerIdx < 0 {
		return nil
	}

	for _, row := range rows[headerIdx+1:] {
		if !rowMatchesDomain(row, columns, target) {
			continue
		}
		hit := &StructuredHit{}
		for j, cell := range row {
			if j >= len(columns) {
				break
			}
			price, ok := parseCellPrice(cell)
			if !ok {
				continue
			}
			switch columns[j] {
			case colGuestPost:
				hit.GuestPostPrice = &price
			case colLinkInsertion:
				hit.LinkInsertionPrice = &price
			case colHomepage:
				hit.HomepageLinkPrice = &price
			case colCasino:
				hit.CasinoPrice = &price
			}
			if hit.Currency == "" {
				hit.Currency = currencyFromCell(cell)
			}
		}
		if hit.HasAnyPrice() {
			if hit.Currency == "" {
				hit.Currency = "USD"
			}
			return hit
		}
	}
	return nil
}

// rowMatchesDomain checks the domain cell with substring match in either
// direction: sheets list "example.com", "www.example.com" or bare "example".
func rowMatchesDomain(row []string, columns []priceColumn, target string) bool {
	for j, cell := range row {
		if j >= len(columns) || columns[j] != colDomain {
			continue
		}
		c := strings.ToLower(strings.TrimSpace(cell))
		if c == "" {
			continue
		}
		if strings.Contains(c, target) || strings.Contains(target, c) {
			return true
		}
	}
	return false
}

// parseCellPrice extracts a positive number from a sheet cell, tolerating
// currency symbols and thousand separators.
func parseCellPrice(cell string) (float64, bool) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0, false
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			// thousand separator
		}
	}
	num := b.String()
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func currencyFromCell(cell string) string {
	switch {
	case strings.ContainsRune(cell, '$'):
		return "USD"
	case strings.ContainsRune(cell, '€'):
		return "EUR"
	case strings.ContainsRune(cell, '£'):
		return "GBP"
	}
	upper := strings.ToUpper(cell)
	for _, code := range []string{"USD", "EUR", "GBP"} {
		if strings.Contains(upper, code) {
			return code
		}
	}
	return ""
}

// FlattenRows renders parsed rows as plain text for the oracle fallback.
func FlattenRows(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	return b.String()
}
