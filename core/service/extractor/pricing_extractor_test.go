package extractor

import (
	"context"
	"strings"
	"testing"
	"time"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
)

// fakeOracle returns a canned extraction and records whether it was called.
type fakeOracle struct {
	extraction *out.AIExtraction
	called     bool
}

func (f *fakeOracle) ExtractForDomain(ctx context.Context, content, targetDomain string) (*out.AIExtraction, error) {
	f.called = true
	return f.extraction, nil
}

// fakeParser decodes "csv" test data split on ; and ,.
type fakeParser struct{}

func (fakeParser) ParseTabular(data []byte, ext string) ([][]string, error) {
	var rows [][]string
	for _, line := range strings.Split(strings.TrimSpace(string(data)), ";") {
		rows = append(rows, strings.Split(line, ","))
	}
	return rows, nil
}

type noLinks struct{}

func (noLinks) FindLinks(text string) []string { return nil }
func (noLinks) Fetch(ctx context.Context, url, account string) (string, error) {
	return "", nil
}

func notOutbound(string) bool { return false }

func fptr(v float64) *float64 { return &v }

func testEmail(from, subject, body string) *domain.CandidateEmail {
	return &domain.CandidateEmail{
		ID:             "m1",
		Account:        "outreach@linkdesk.io",
		From:           from,
		Subject:        subject,
		Body:           body,
		Date:           time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC),
		Classification: domain.Classification{Tier: domain.TierDirectWebmaster, Score: 85},
	}
}

// TestExtractValidatedCandidate covers the direct-webmaster quote scenario:
// a grounded guest post price with explicit casino rejection.
func TestExtractValidatedCandidate(t *testing.T) {
	oracle := &fakeOracle{extraction: &out.AIExtraction{
		Found:          true,
		GuestPostPrice: fptr(200),
		Currency:       "USD",
		Confidence:     0.9,
	}}
	e := New(oracle, fakeParser{}, noLinks{}, notOutbound)

	email := testEmail("webmaster@example.com", "Re: Guest post on example.com",
		"Guest post price: $200, casino not accepted")

	res, err := e.Extract(context.Background(), email, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Candidate == nil {
		t.Fatal("expected a candidate, got nil")
	}
	c := res.Candidate
	if c.GuestPostPrice == nil || *c.GuestPostPrice != 200 {
		t.Errorf("guest post price = %v, want 200", c.GuestPostPrice)
	}
	if c.CasinoPrice != nil {
		t.Errorf("casino price = %v, want nil", *c.CasinoPrice)
	}
	if c.CasinoAccepted != domain.CasinoAcceptedNo {
		t.Errorf("casino accepted = %q, want no", c.CasinoAccepted)
	}
	if c.SourceContact != "webmaster@example.com" {
		t.Errorf("source contact = %q", c.SourceContact)
	}
	if len(res.ValidationMatches) == 0 {
		t.Error("expected validation matches recorded")
	}
}

// TestExtractDiscardsUngroundedPrimary covers the anti-hallucination rule:
// an oracle price absent from the source kills the whole candidate.
func TestExtractDiscardsUngroundedPrimary(t *testing.T) {
	oracle := &fakeOracle{extraction: &out.AIExtraction{
		Found:          true,
		GuestPostPrice: fptr(9999),
		Currency:       "USD",
		Confidence:     0.9,
	}}
	e := New(oracle, fakeParser{}, noLinks{}, notOutbound)

	email := testEmail("webmaster@example.com", "pricing", "example.com guest post price: $200")

	res, err := e.Extract(context.Background(), email, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Fatalf("expected no candidate for ungrounded price, got %+v", res.Candidate)
	}
}

// TestExtractNullsFailedCasinoPrice keeps the candidate when only the
// casino-specific price fails validation.
func TestExtractNullsFailedCasinoPrice(t *testing.T) {
	oracle := &fakeOracle{extraction: &out.AIExtraction{
		Found:          true,
		GuestPostPrice: fptr(200),
		CasinoPrice:    fptr(750),
		Currency:       "USD",
		Confidence:     0.8,
	}}
	e := New(oracle, fakeParser{}, noLinks{}, notOutbound)

	email := testEmail("webmaster@example.com", "pricing", "example.com guest post price: $200")

	res, err := e.Extract(context.Background(), email, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil {
		t.Fatal("expected candidate to survive")
	}
	c := res.Candidate
	if c.GuestPostPrice == nil || *c.GuestPostPrice != 200 {
		t.Errorf("guest post price = %v, want 200", c.GuestPostPrice)
	}
	if c.CasinoPrice != nil {
		t.Errorf("casino price = %v, want nil after failed validation", *c.CasinoPrice)
	}
	// No explicit rejection language: default is accepted.
	if c.CasinoAccepted != domain.CasinoAcceptedYes {
		t.Errorf("casino accepted = %q, want yes", c.CasinoAccepted)
	}
}

// TestExtractDomainGate verifies the oracle is never consulted when the
// domain does not appear in the content.
func TestExtractDomainGate(t *testing.T) {
	oracle := &fakeOracle{extraction: &out.AIExtraction{Found: true, GuestPostPrice: fptr(100)}}
	e := New(oracle, fakeParser{}, noLinks{}, notOutbound)

	email := testEmail("someone@elsewhere.net", "prices", "our price list: $100 per post")

	res, err := e.Extract(context.Background(), email, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != nil {
		t.Fatal("expected nil result when domain absent")
	}
	if oracle.called {
		t.Error("oracle consulted despite missing domain")
	}
}

// TestExtractStructuredBypass: a structured sheet hit skips the oracle.
func TestExtractStructuredBypass(t *testing.T) {
	oracle := &fakeOracle{}
	e := New(oracle, fakeParser{}, noLinks{}, notOutbound)

	email := testEmail("lists@mediahouse.net", "our site list", "see attached for example.com")
	email.Attachments = []domain.EmailAttachment{{
		Filename: "sites.csv",
		Data:     []byte("Website,Guest Post Price,Casino Price;example.com,$200,$350;other.com,$90,$120"),
	}}

	res, err := e.Extract(context.Background(), email, "example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res == nil || res.Candidate == nil {
		t.Fatal("expected structured candidate")
	}
	c := res.Candidate
	if oracle.called {
		t.Error("oracle consulted despite structured hit")
	}
	if c.GuestPostPrice == nil || *c.GuestPostPrice != 200 {
		t.Errorf("guest post price = %v, want 200", c.GuestPostPrice)
	}
	if c.CasinoPrice == nil || *c.CasinoPrice != 350 {
		t.Errorf("casino price = %v, want 350", c.CasinoPrice)
	}
	if c.CasinoAccepted != domain.CasinoAcceptedYes {
		t.Errorf("casino accepted = %q, want yes", c.CasinoAccepted)
	}
	if c.Currency != "USD" {
		t.Errorf("currency = %q, want USD", c.Currency)
	}
	if c.Confidence < 0.9 {
		t.Errorf("confidence = %v, want high for structured hit", c.Confidence)
	}
}

// TestStructuredLookupHeaderMapping pins header keyword mapping.
func TestStructuredLookupHeaderMapping(t *testing.T) {
	rows := [][]string{
		{"Site", "General Niche", "Link Insertion", "Homepage", "iGaming"},
		{"other.com", "90", "40", "500", "150"},
		{"www.example.com", "120", "60", "800", "300"},
	}
	hit := StructuredLookup(rows, "example.com")
	if hit == nil {
		t.Fatal("expected a hit")
	}
	if hit.GuestPostPrice == nil || *hit.GuestPostPrice != 120 {
		t.Errorf("guest post = %v, want 120 (general niche fallback)", hit.GuestPostPrice)
	}
	if hit.LinkInsertionPrice == nil || *hit.LinkInsertionPrice != 60 {
		t.Errorf("link insertion = %v, want 60", hit.LinkInsertionPrice)
	}
	if hit.HomepageLinkPrice == nil || *hit.HomepageLinkPrice != 800 {
		t.Errorf("homepage = %v, want 800", hit.HomepageLinkPrice)
	}
	if hit.CasinoPrice == nil || *hit.CasinoPrice != 300 {
		t.Errorf("casino = %v, want 300", hit.CasinoPrice)
	}

	if got := StructuredLookup(rows, "missing.org"); got != nil {
		t.Errorf("expected nil for unlisted domain, got %+v", got)
	}
	if got := StructuredLookup([][]string{{"a", "b"}}, "example.com"); got != nil {
		t.Errorf("expected nil for headerless sheet, got %+v", got)
	}
}

// TestTruncateAround keeps the domain anchor inside the clipped window.
func TestTruncateAround(t *testing.T) {
	long := strings.Repeat("x", 20000) + "example.com price $100" + strings.Repeat("y", 20000)
	anchor := strings.Index(long, "example.com")
	got := truncateAround(long, anchor, 12000)
	if len(got) != 12000 {
		t.Errorf("len = %d, want 12000", len(got))
	}
	if !strings.Contains(got, "example.com price $100") {
		t.Error("anchor text lost by truncation")
	}
}
