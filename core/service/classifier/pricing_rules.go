// Package classifier scores an email's trustworthiness as pricing evidence
// for a target domain.
package classifier

import (
	"regexp"
	"strings"
)

// =============================================================================
// Trust Scoring System
// =============================================================================
//
// Every email starts at the base score and walks an ordered rule table.
// Rules are independent: each inspects the prepared input and contributes a
// delta. The final score maps to a trust tier (direct-webmaster, price-list,
// unknown, reseller, invoice); mail sent from one of the operator's own
// outbound mailboxes is tiered outbound regardless of score.

const (
	// BaseScore is the starting trust score for every email.
	BaseScore = 30

	// Rule deltas.
	DeltaOutboundSender    = -50
	DeltaReplyWithDomain   = +50
	DeltaReplyNoDomain     = +40
	DeltaUnsolicited       = -15
	DeltaForeignDomain     = -40
	DeltaNegotiation       = +25
	DeltaPricingSubject    = +25
	DeltaInquiryResponse   = +20
	DeltaSenderAtDomain    = +70
	DeltaSenderPrefixMatch = +30
	DeltaPriceListVocab    = +20
	DeltaResellerIndicator = -60
	DeltaInvoiceVocab      = -30
)

// SenderAtDomainFloor is the minimum score for a sender whose address
// contains the target domain. The domain's own voice cannot be demoted
// below direct-webmaster by negative vocabulary signals, e.g. an owner
// writing "we are not a reseller".
const SenderAtDomainFloor = 70

// minPrefixLen is the shortest abbreviated domain prefix the sender
// local-part match will accept. Labels shorter than minPrefixLen+1 are only
// matched whole: 3-char prefixes of short labels over-match badly.
const minPrefixLen = 4

// -----------------------------------------------------------------------------
// Pattern Tables
// -----------------------------------------------------------------------------

// outreachInquiryPhrases are subjects our own outreach mails use; a reply
// quoting one of them is almost certainly the publisher answering us.
var outreachInquiryPhrases = []string{
	"guest post",
	"guest posting",
	"sponsored post",
	"link insertion",
	"link placement",
	"article placement",
	"publication on",
	"advertising on",
	"paid post",
	"your website",
}

// negotiationPhrases signal a confirmed, not merely quoted, price.
var negotiationPhrases = []string{
	"agreed",
	"okay for",
	"deal done",
}

// inquiryResponsePhrases are generic publisher replies to an inquiry.
var inquiryResponsePhrases = []string{
	"thank you for reaching out",
	"thanks for reaching out",
	"thank you for your interest",
	"thanks for your interest",
	"regarding your inquiry",
	"in response to your",
}

// priceListVocab marks mail that carries a rate table.
var priceListVocab = []string{
	"price list",
	"pricing sheet",
	"rate card",
	"our rates",
	"our prices",
	"full list of sites",
}

// resellerIndicators mark agencies and brokers quoting someone else's
// inventory; their numbers are markup, not the publisher's price.
var resellerIndicators = []string{
	"our network of sites",
	"our inventory",
	"database of websites",
	"site list attached",
	"outreach agency",
	"seo agency",
	"link building service",
	"bulk order",
	"reseller",
}

// invoiceVocab marks billing mail rather than quotes.
var invoiceVocab = []string{
	"invoice",
	"receipt",
	"payment received",
	"amount due",
	"billed to",
}

var (
	// replyPrefixRe matches "re:" / "re " reply subjects.
	replyPrefixRe = regexp.MustCompile(`(?i)^\s*re[: ]`)

	// subjectDomainRe pulls "on|for|at <domain>" tokens out of a subject to
	// detect mail about some other website.
	subjectDomainRe = regexp.MustCompile(`(?i)\b(?:on|for|at)\s+((?:[a-z0-9-]+\.)+[a-z]{2,})`)

	// pricingSubjectRe matches direct-pricing phrasing in a subject line.
	pricingSubjectRe = regexp.MustCompile(`(?i)\b(price|prices|pricing|rate|rates|cost|fee)\b`)
)

// -----------------------------------------------------------------------------
// Rule Table
// -----------------------------------------------------------------------------

// ruleInput is the prepared, lowercased view of one email the rules run on.
type ruleInput struct {
	from     string
	subject  string
	body     string
	combined string // subject + body
	domain   string // normalized target domain
	label    string // first label of the target domain

	outbound bool
	reply    bool
}

// rule is one independent scoring adjustment.
type rule struct {
	name  string
	apply func(in *ruleInput) (delta int, hit bool)
}

// rules is the ordered trust rule table. Order matters only for the
// sender-match pair (full-domain match suppresses the prefix match); every
// other rule is independent.
var rules = []rule{
	{"outbound-sender", func(in *ruleInput) (int, bool) {
		return DeltaOutboundSender, in.outbound
	}},
	{"reply-to-outreach-with-domain", func(in *ruleInput) (int, bool) {
		return DeltaReplyWithDomain,
			in.reply && containsAny(in.subject, outreachInquiryPhrases) &&
				strings.Contains(in.subject, in.domain)
	}},
	{"reply-to-outreach", func(in *ruleInput) (int, bool) {
		return DeltaReplyNoDomain,
			in.reply && containsAny(in.subject, outreachInquiryPhrases) &&
				!strings.Contains(in.subject, in.domain)
	}},
	{"unsolicited", func(in *ruleInput) (int, bool) {
		return DeltaUnsolicited, !in.reply && !in.outbound
	}},
	{"foreign-domain-subject", func(in *ruleInput) (int, bool) {
		return DeltaForeignDomain, referencesForeignDomain(in.subject, in.domain)
	}},
	{"negotiation-confirmed", func(in *ruleInput) (int, bool) {
		return DeltaNegotiation, !in.outbound && containsAny(in.body, negotiationPhrases)
	}},
	{"pricing-subject", func(in *ruleInput) (int, bool) {
		return DeltaPricingSubject,
			!in.outbound && pricingSubjectRe.MatchString(in.subject) &&
				strings.Contains(in.combined, in.domain)
	}},
	{"inquiry-response", func(in *ruleInput) (int, bool) {
		return DeltaInquiryResponse,
			!in.outbound && containsAny(in.body, inquiryResponsePhrases) &&
				strings.Contains(in.combined, in.domain)
	}},
	{"sender-at-domain", func(in *ruleInput) (int, bool) {
		return DeltaSenderAtDomain, strings.Contains(in.from, in.domain)
	}},
	{"sender-prefix-match", func(in *ruleInput) (int, bool) {
		// Only when the full-domain match did not already fire.
		if strings.Contains(in.from, in.domain) {
			return 0, false
		}
		return DeltaSenderPrefixMatch, senderMatchesLabelPrefix(in.from, in.label)
	}},
	{"price-list-vocab", func(in *ruleInput) (int, bool) {
		return DeltaPriceListVocab, containsAny(in.combined, priceListVocab)
	}},
	{"reseller-indicator", func(in *ruleInput) (int, bool) {
		return DeltaResellerIndicator,
			containsAny(in.combined, resellerIndicators) || containsAny(in.from, resellerIndicators)
	}},
	{"invoice-vocab", func(in *ruleInput) (int, bool) {
		return DeltaInvoiceVocab, containsAny(in.combined, invoiceVocab)
	}},
}

// -----------------------------------------------------------------------------
// Predicate Helpers
// -----------------------------------------------------------------------------

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// referencesForeignDomain reports whether the subject names a domain token
// ("on|for|at <domain>") that is not the target.
func referencesForeignDomain(subject, target string) bool {
	matches := subjectDomainRe.FindAllStringSubmatch(subject, -1)
	for _, m := range matches {
		found := strings.ToLower(strings.TrimPrefix(m[1], "www."))
		if found != target && !strings.Contains(found, target) && !strings.Contains(target, found) {
			return true
		}
	}
	return false
}

// senderMatchesLabelPrefix reports whether the sender local-part contains a
// progressively shortened prefix of the domain's first label. Prefixes
// shorter than minPrefixLen are not tried; short labels match only whole.
func senderMatchesLabelPrefix(from, label string) bool {
	if label == "" {
		return false
	}
	local := from
	if at := strings.IndexByte(from, '@'); at >= 0 {
		local = from[:at]
	}
	if len(label) <= minPrefixLen {
		return strings.Contains(local, label)
	}
	for l := len(label); l >= minPrefixLen; l-- {
		if strings.Contains(local, label[:l]) {
			return true
		}
	}
	return false
}
