package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
	"pricing_server/pkg/logger"
)

const (
	// contentBudget bounds what the oracle sees. Truncation is centered on
	// the first occurrence of the target domain so the relevant row or
	// paragraph survives.
	contentBudget = 12000

	// structuredConfidence is assigned to table hits: deterministic lookup,
	// no oracle guesswork involved.
	structuredConfidence = 0.95
)

// casinoRejectionRe catches explicit "no gambling content" language.
var casinoRejectionRe = regexp.MustCompile(`(?i)(casino[^.\n]{0,30}not accepted|no casino|not accept(ing)? (casino|gambling|igaming)|don'?t accept (casino|gambling|igaming))`)

// Extractor produces at most one validated price candidate per email.
type Extractor struct {
	oracle     out.AIExtractor
	parser     out.AttachmentParser
	links      out.SpreadsheetLinkFetcher
	isOutbound isOutboundFn
	log        *logger.Logger
}

// New creates an extractor.
func New(oracle out.AIExtractor, parser out.AttachmentParser, links out.SpreadsheetLinkFetcher, isOutbound isOutboundFn) *Extractor {
	return &Extractor{
		oracle:     oracle,
		parser:     parser,
		links:      links,
		isOutbound: isOutbound,
		log:        logger.WithField("component", "extractor"),
	}
}

// Result carries the candidate plus the audit trail of how its numbers were
// grounded in the source.
type Result struct {
	Candidate         *domain.PriceCandidate
	Content           string
	ValidationMatches []string
}

// Extract runs the full pipeline for one email: content assembly, structured
// lookup, domain gate, oracle, validation, contact resolution. Returns
// (nil, nil) when the email yields no grounded candidate.
func (e *Extractor) Extract(ctx context.Context, email *domain.CandidateEmail, targetDomain string) (*Result, error) {
	dom := domain.NormalizeDomain(targetDomain)

	content := e.buildContent(email)

	// Structured lookup on tabular attachments comes first; a hit bypasses
	// the oracle entirely.
	for i := range email.Attachments {
		att := &email.Attachments[i]
		if !att.IsTabular() || len(att.Data) == 0 {
			continue
		}
		rows, err := e.parser.ParseTabular(att.Data, att.Ext())
		if err != nil {
			e.log.WithError(err).Warn("tabular attachment parse failed: %s", att.Filename)
			continue
		}
		if hit := StructuredLookup(rows, dom); hit != nil {
			e.log.Debug("structured hit for %s in %s", dom, att.Filename)
			return &Result{
				Candidate: e.candidateFromStructured(email, dom, hit),
				Content:   content,
			}, nil
		}
		// No structured hit: the sheet text still feeds the oracle.
		content += "\n" + FlattenRows(rows)
	}

	// Shared-spreadsheet links referenced in the body.
	if e.links != nil {
		for _, url := range e.links.FindLinks(email.Body) {
			text, err := e.links.Fetch(ctx, url, email.Account)
			if err != nil {
				e.log.WithError(err).Warn("spreadsheet link fetch failed")
				continue
			}
			content += "\n" + text
		}
	}

	// An email that never mentions the domain cannot price it.
	lower := strings.ToLower(content)
	firstIdx := strings.Index(lower, dom)
	if firstIdx < 0 {
		return nil, nil
	}

	content = truncateAround(content, firstIdx, contentBudget)

	extraction, err := e.oracle.ExtractForDomain(ctx, content, dom)
	if err != nil {
		return nil, fmt.Errorf("ai extraction: %w", err)
	}
	if extraction == nil || !extraction.Found {
		return nil, nil
	}

	candidate, matches := e.validate(email, dom, content, extraction)
	if candidate == nil {
		return nil, nil
	}
	return &Result{Candidate: candidate, Content: content, ValidationMatches: matches}, nil
}

// buildContent assembles the header block plus body.
func (e *Extractor) buildContent(email *domain.CandidateEmail) string {
	var b strings.Builder
	b.WriteString("From: " + email.From + "\n")
	b.WriteString("Subject: " + email.Subject + "\n")
	b.WriteString("Date: " + email.Date.Format("2006-01-02") + "\n\n")
	b.WriteString(email.Body)
	return b.String()
}

// candidateFromStructured converts a table hit into a high-confidence
// candidate. Structured numbers are grounded by construction.
func (e *Extractor) candidateFromStructured(email *domain.CandidateEmail, dom string, hit *StructuredHit) *domain.PriceCandidate {
	c := &domain.PriceCandidate{
		Domain:             dom,
		GuestPostPrice:     hit.GuestPostPrice,
		LinkInsertionPrice: hit.LinkInsertionPrice,
		HomepageLinkPrice:  hit.HomepageLinkPrice,
		CasinoPrice:        hit.CasinoPrice,
		Currency:           hit.Currency,
		SourceSubject:      email.Subject,
		SourceAccount:      email.Account,
		Confidence:         structuredConfidence,
		Score:              email.Classification.Score,
		EmailDate:          email.Date,
	}
	c.CasinoAccepted = deriveCasinoAccepted(c.CasinoPrice != nil, nil, email.Body)
	c.SourceContact = ResolveContact(email.From, email.Body, e.isOutbound)
	return c
}

// validate grounds every oracle price in the source content. A failing
// primary price discards the candidate; a failing casino price is nulled.
func (e *Extractor) validate(email *domain.CandidateEmail, dom, content string, ex *out.AIExtraction) (*domain.PriceCandidate, []string) {
	var matches []string
	check := func(p *float64) *float64 {
		if p == nil {
			return nil
		}
		if m, ok := locatePrice(content, *p); ok {
			matches = append(matches, m)
			return p
		}
		return nil
	}

	c := &domain.PriceCandidate{
		Domain:        dom,
		Currency:      ex.Currency,
		SourceSubject: email.Subject,
		SourceAccount: email.Account,
		Confidence:    ex.Confidence,
		Score:         email.Classification.Score,
		EmailDate:     email.Date,
	}

	// The primary price is the first populated non-casino field; it must
	// survive validation or the whole candidate is hallucination-suspect.
	primaryOK := false
	for _, f := range []struct {
		src *float64
		dst **float64
	}{
		{ex.GuestPostPrice, &c.GuestPostPrice},
		{ex.LinkInsertionPrice, &c.LinkInsertionPrice},
		{ex.SponsoredPostPrice, &c.SponsoredPostPrice},
		{ex.HomepageLinkPrice, &c.HomepageLinkPrice},
	} {
		if f.src == nil {
			continue
		}
		validated := check(f.src)
		if !primaryOK {
			if validated == nil {
				e.log.Warn("primary price %.2f not grounded in source for %s, discarding candidate", *f.src, dom)
				return nil, nil
			}
			primaryOK = true
		}
		*f.dst = validated
	}

	c.CasinoPrice = check(ex.CasinoPrice)
	if !primaryOK && c.CasinoPrice == nil {
		// Nothing survived.
		return nil, nil
	}

	c.CasinoAccepted = deriveCasinoAccepted(c.CasinoPrice != nil, ex.CasinoAccepted, content)
	c.SourceContact = ResolveContact(email.From, email.Body, e.isOutbound)
	return c, matches
}

// deriveCasinoAccepted: a surviving casino price or an explicit oracle
// affirmation means yes; only explicit rejection language means no; silence
// defaults to yes.
func deriveCasinoAccepted(casinoPriceValid bool, oracleSays *bool, content string) string {
	if casinoPriceValid {
		return domain.CasinoAcceptedYes
	}
	if oracleSays != nil {
		if *oracleSays {
			return domain.CasinoAcceptedYes
		}
		return domain.CasinoAcceptedNo
	}
	if casinoRejectionRe.MatchString(content) {
		return domain.CasinoAcceptedNo
	}
	return domain.CasinoAcceptedYes
}

// truncateAround clips content to budget chars centered on the anchor.
func truncateAround(content string, anchor, budget int) string {
	if len(content) <= budget {
		return content
	}
	start := anchor - budget/2
	if start < 0 {
		start = 0
	}
	end := start + budget
	if end > len(content) {
		end = len(content)
		start = end - budget
	}
	return content[start:end]
}
