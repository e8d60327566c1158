// Package domain contains the core entities of the pricing resolution service.
package domain

import (
	"strings"
	"time"
)

// =============================================================================
// Domain Normalization
// =============================================================================

// NormalizeDomain canonicalizes a website domain for use as a search key.
// Scheme, "www." prefix, path and trailing slash are stripped, the rest is
// lowercased.
func NormalizeDomain(raw string) string {
	d := strings.TrimSpace(strings.ToLower(raw))
	for _, scheme := range []string{"https://", "http://"} {
		d = strings.TrimPrefix(d, scheme)
	}
	d = strings.TrimPrefix(d, "www.")
	if idx := strings.IndexAny(d, "/?#"); idx >= 0 {
		d = d[:idx]
	}
	return strings.TrimSuffix(d, ".")
}

// DomainFirstLabel returns the leftmost label of a normalized domain
// ("example" for "example.co.uk").
func DomainFirstLabel(domain string) string {
	if idx := strings.IndexByte(domain, '.'); idx >= 0 {
		return domain[:idx]
	}
	return domain
}

// =============================================================================
// Candidate Emails
// =============================================================================

// EmailAttachment is a fetched attachment of a candidate email.
type EmailAttachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// Ext returns the lowercased filename extension without the dot.
func (a *EmailAttachment) Ext() string {
	idx := strings.LastIndexByte(a.Filename, '.')
	if idx < 0 || idx == len(a.Filename)-1 {
		return ""
	}
	return strings.ToLower(a.Filename[idx+1:])
}

// IsTabular reports whether the attachment is a spreadsheet format the
// structured lookup understands.
func (a *EmailAttachment) IsTabular() bool {
	switch a.Ext() {
	case "xlsx", "xls", "csv":
		return true
	}
	return false
}

// CandidateEmail is one fetched mailbox message considered as pricing
// evidence for a target domain. Ephemeral: never persisted.
type CandidateEmail struct {
	ID          string
	Account     string
	From        string
	Subject     string
	Body        string
	Date        time.Time
	Attachments []EmailAttachment

	// Derived by the classifier.
	Classification Classification
}

// =============================================================================
// Trust Classification
// =============================================================================

// Tier is the coarse trust bucket for an email's evidentiary value.
type Tier string

const (
	TierDirectWebmaster Tier = "direct-webmaster"
	TierPriceList       Tier = "price-list"
	TierUnknown         Tier = "unknown"
	TierReseller        Tier = "reseller"
	TierInvoice         Tier = "invoice"
	TierOutbound        Tier = "outbound"
)

// Classification is the classifier's verdict for one email against one
// target domain.
type Classification struct {
	Tier  Tier
	Score int
}

// TierFromScore maps a final trust score to a tier. Outbound mail is tiered
// before scoring and never reaches this mapping.
func TierFromScore(score int) Tier {
	switch {
	case score >= 70:
		return TierDirectWebmaster
	case score >= 50:
		return TierPriceList
	case score >= 30:
		return TierUnknown
	case score >= 10:
		return TierReseller
	default:
		return TierInvoice
	}
}

// =============================================================================
// Price Candidates
// =============================================================================

// CasinoAccepted values. The default when evidence is silent is "yes":
// publishers that reject gambling content say so explicitly.
const (
	CasinoAcceptedYes = "yes"
	CasinoAcceptedNo  = "no"
)

// PriceCandidate is one extracted pricing offer for a domain, sourced from a
// single email. Ephemeral until selected as the resolved price.
type PriceCandidate struct {
	Domain             string
	GuestPostPrice     *float64
	LinkInsertionPrice *float64
	SponsoredPostPrice *float64
	HomepageLinkPrice  *float64
	CasinoPrice        *float64
	CasinoAccepted     string
	Currency           string
	SourceContact      string
	SourceSubject      string
	SourceAccount      string
	Confidence         float64
	Score              int
	EmailDate          time.Time
}

// HasAnyPrice reports whether at least one price field is set.
func (p *PriceCandidate) HasAnyPrice() bool {
	return p.GuestPostPrice != nil || p.LinkInsertionPrice != nil ||
		p.SponsoredPostPrice != nil || p.HomepageLinkPrice != nil ||
		p.CasinoPrice != nil
}

// PrimaryPrice returns the first populated price field in canonical order,
// used for candidate-level validity checks.
func (p *PriceCandidate) PrimaryPrice() *float64 {
	for _, v := range []*float64{
		p.GuestPostPrice, p.LinkInsertionPrice, p.SponsoredPostPrice,
		p.HomepageLinkPrice,
	} {
		if v != nil {
			return v
		}
	}
	return p.CasinoPrice
}

// ResolvedPrice is the accepted pricing answer for a domain after evidence
// aggregation. Persisted, keyed by domain.
type ResolvedPrice struct {
	Domain             string
	GuestPostPrice     *float64
	LinkInsertionPrice *float64
	SponsoredPostPrice *float64
	HomepageLinkPrice  *float64
	CasinoPrice        *float64
	CasinoAccepted     string
	Currency           string
	SourceContact      string
	SourceSubject      string
	SourceAccount      string
	Confidence         float64
	Score              int
	EmailDate          time.Time
	ResolvedAt         time.Time
}

// FromCandidate builds a ResolvedPrice from the winning candidate.
func FromCandidate(c *PriceCandidate, now time.Time) *ResolvedPrice {
	return &ResolvedPrice{
		Domain:             c.Domain,
		GuestPostPrice:     c.GuestPostPrice,
		LinkInsertionPrice: c.LinkInsertionPrice,
		SponsoredPostPrice: c.SponsoredPostPrice,
		HomepageLinkPrice:  c.HomepageLinkPrice,
		CasinoPrice:        c.CasinoPrice,
		CasinoAccepted:     c.CasinoAccepted,
		Currency:           c.Currency,
		SourceContact:      c.SourceContact,
		SourceSubject:      c.SourceSubject,
		SourceAccount:      c.SourceAccount,
		Confidence:         c.Confidence,
		Score:              c.Score,
		EmailDate:          c.EmailDate,
		ResolvedAt:         now,
	}
}

// =============================================================================
// Mailbox Accounts
// =============================================================================

// MailboxAccount identifies one operator mailbox searched for evidence.
type MailboxAccount struct {
	Email    string
	Provider string
}
