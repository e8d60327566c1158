package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
	"pricing_server/core/service/classifier"
	"pricing_server/core/service/extractor"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeProvider struct {
	mu        sync.Mutex
	order     map[string][]string                 // account -> ids, newest first
	emails    map[string]*domain.CandidateEmail   // id -> email
	searchErr map[string]error                    // account -> error
	fetchErr  map[string]error                    // id -> error
}

func (p *fakeProvider) Search(ctx context.Context, account, query string, max int) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.searchErr[account]; err != nil {
		return nil, err
	}
	ids := p.order[account]
	if len(ids) > max {
		ids = ids[:max]
	}
	return ids, nil
}

func (p *fakeProvider) Fetch(ctx context.Context, account, id string) (*domain.CandidateEmail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.fetchErr[id]; err != nil {
		return nil, err
	}
	src := p.emails[id]
	cp := *src
	return &cp, nil
}

// scriptedOracle answers based on a needle found in the content.
type scriptedOracle struct {
	mu       sync.Mutex
	byNeedle map[string]*out.AIExtraction
	calls    int
}

func (o *scriptedOracle) ExtractForDomain(ctx context.Context, content, targetDomain string) (*out.AIExtraction, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	for needle, ex := range o.byNeedle {
		if strings.Contains(content, needle) {
			return ex, nil
		}
	}
	return &out.AIExtraction{Found: false}, nil
}

func (o *scriptedOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type nopParser struct{}

func (nopParser) ParseTabular(data []byte, ext string) ([][]string, error) {
	return nil, errors.New("no tabular data in tests")
}

type nopLinks struct{}

func (nopLinks) FindLinks(text string) []string { return nil }
func (nopLinks) Fetch(ctx context.Context, url, account string) (string, error) {
	return "", nil
}

func fptr(v float64) *float64 { return &v }

const operatorMailbox = "outreach@linkdesk.io"

func newResolver(provider *fakeProvider, oracle *scriptedOracle, cfg Config) *Resolver {
	cls := classifier.New([]string{operatorMailbox})
	col := NewCollector(provider, cls, []string{operatorMailbox}, 0)
	ext := extractor.New(oracle, nopParser{}, nopLinks{}, cls.IsOutbound)
	return New(col, ext, nil, nil, cfg)
}

func email(id, from, subject, body string, date time.Time) *domain.CandidateEmail {
	return &domain.CandidateEmail{ID: id, From: from, Subject: subject, Body: body, Date: date}
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

// TestResolveDirectTierBeatsNewerReseller: a confirmed webmaster quote wins
// over a newer reseller quote, and the reseller email is never extracted.
func TestResolveDirectTierBeatsNewerReseller(t *testing.T) {
	reseller := email("r1", "deals@linkmarket.net", "Guest post offer for foo.com",
		"We can place you on foo.com via our network of sites. Just $50 per post.",
		time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	webmaster := email("w1", "contact@foo.com", "Re: Guest post on foo.com",
		"Okay, $300 final. Agreed.",
		time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	provider := &fakeProvider{
		order:  map[string][]string{operatorMailbox: {"r1", "w1"}},
		emails: map[string]*domain.CandidateEmail{"r1": reseller, "w1": webmaster},
	}
	oracle := &scriptedOracle{byNeedle: map[string]*out.AIExtraction{
		"$300": {Found: true, GuestPostPrice: fptr(300), Currency: "USD", Confidence: 0.9},
		"$50":  {Found: true, GuestPostPrice: fptr(50), Currency: "USD", Confidence: 0.9},
	}}
	r := newResolver(provider, oracle, Config{})

	winner, err := r.Resolve(context.Background(), "foo.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner == nil {
		t.Fatal("expected a winner")
	}
	if winner.GuestPostPrice == nil || *winner.GuestPostPrice != 300 {
		t.Errorf("winner price = %v, want 300", winner.GuestPostPrice)
	}
	if winner.SourceContact != "contact@foo.com" {
		t.Errorf("winner contact = %q", winner.SourceContact)
	}
	// Direct band produced a candidate: the reseller must never reach the oracle.
	if got := oracle.callCount(); got != 1 {
		t.Errorf("oracle calls = %d, want 1", got)
	}
}

// TestResolveFallsThroughToLowerBand: with no direct evidence, a price-list
// email still produces a winner.
func TestResolveFallsThroughToLowerBand(t *testing.T) {
	// Unsolicited price list: base 30 - 15 + 25 + 20 = 60, mid band.
	pricelist := email("p1", "sales@mediahub.net", "Our price list",
		"Please find our rates below. bar.com: $120 per post.",
		time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))

	provider := &fakeProvider{
		order:  map[string][]string{operatorMailbox: {"p1"}},
		emails: map[string]*domain.CandidateEmail{"p1": pricelist},
	}
	oracle := &scriptedOracle{byNeedle: map[string]*out.AIExtraction{
		"$120": {Found: true, GuestPostPrice: fptr(120), Currency: "USD", Confidence: 0.8},
	}}
	r := newResolver(provider, oracle, Config{})

	winner, err := r.Resolve(context.Background(), "bar.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner == nil {
		t.Fatal("expected a winner from a lower band")
	}
	if winner.GuestPostPrice == nil || *winner.GuestPostPrice != 120 {
		t.Errorf("winner price = %v, want 120", winner.GuestPostPrice)
	}
}

// TestResolveNoEvidence: an empty archive is an answer, not an error.
func TestResolveNoEvidence(t *testing.T) {
	provider := &fakeProvider{order: map[string][]string{operatorMailbox: nil}}
	oracle := &scriptedOracle{}
	r := newResolver(provider, oracle, Config{})

	winner, err := r.Resolve(context.Background(), "empty.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != nil {
		t.Fatalf("expected nil winner, got %+v", winner)
	}
	if oracle.callCount() != 0 {
		t.Error("oracle consulted with no evidence")
	}
}

// TestResolveSkipsAlreadyPricedSender: a second email from a sender that
// already produced a price is not extracted again.
func TestResolveSkipsAlreadyPricedSender(t *testing.T) {
	first := email("w1", "contact@baz.com", "Re: Guest post on baz.com",
		"Price is $200 for baz.com.", time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC))
	second := email("w2", "contact@baz.com", "Re: Guest post on baz.com",
		"Following up, price still $200.", time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	provider := &fakeProvider{
		order:  map[string][]string{operatorMailbox: {"w1", "w2"}},
		emails: map[string]*domain.CandidateEmail{"w1": first, "w2": second},
	}
	oracle := &scriptedOracle{byNeedle: map[string]*out.AIExtraction{
		"$200": {Found: true, GuestPostPrice: fptr(200), Currency: "USD", Confidence: 0.9},
	}}
	r := newResolver(provider, oracle, Config{})

	winner, err := r.Resolve(context.Background(), "baz.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner == nil {
		t.Fatal("expected a winner")
	}
	if got := oracle.callCount(); got != 1 {
		t.Errorf("oracle calls = %d, want 1 (same sender skipped)", got)
	}
}

// TestResolveAttemptCap bounds extraction attempts per band.
func TestResolveAttemptCap(t *testing.T) {
	provider := &fakeProvider{
		order:  map[string][]string{operatorMailbox: {}},
		emails: map[string]*domain.CandidateEmail{},
	}
	// Five distinct direct-tier senders, none of which the oracle prices.
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		e := email(id, id+"@qux.com", "Re: Guest post on qux.com",
			"Let me check with the team about qux.com.",
			time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
		provider.order[operatorMailbox] = append(provider.order[operatorMailbox], id)
		provider.emails[id] = e
	}
	oracle := &scriptedOracle{}
	r := newResolver(provider, oracle, Config{MaxAttemptsPerBand: 2})

	winner, err := r.Resolve(context.Background(), "qux.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if winner != nil {
		t.Fatalf("expected no winner, got %+v", winner)
	}
	if got := oracle.callCount(); got != 2 {
		t.Errorf("oracle calls = %d, want 2 (attempt cap)", got)
	}
}

// TestCollectorFaultTolerance: one account failing, or one message failing to
// fetch, never suppresses the rest of the evidence.
func TestCollectorFaultTolerance(t *testing.T) {
	good := email("g1", "contact@site.com", "Re: Guest post on site.com",
		"price talk", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	accounts := []string{"a@linkdesk.io", "b@linkdesk.io"}
	provider := &fakeProvider{
		order:     map[string][]string{"b@linkdesk.io": {"g1", "broken"}},
		emails:    map[string]*domain.CandidateEmail{"g1": good},
		searchErr: map[string]error{"a@linkdesk.io": errors.New("quota exhausted")},
		fetchErr:  map[string]error{"broken": errors.New("message gone")},
	}
	cls := classifier.New([]string{operatorMailbox})
	col := NewCollector(provider, cls, accounts, 10)

	emails := col.Collect(context.Background(), "site.com")
	if len(emails) != 2 {
		t.Fatalf("collected %d emails, want 2", len(emails))
	}
	var placeholder *domain.CandidateEmail
	for _, e := range emails {
		if e.ID == "broken" {
			placeholder = e
		}
	}
	if placeholder == nil {
		t.Fatal("failed fetch should yield a placeholder")
	}
	if placeholder.Classification.Tier != domain.TierUnknown || placeholder.Classification.Score != 0 {
		t.Errorf("placeholder classification = %+v, want unknown/0", placeholder.Classification)
	}
	if !placeholder.Date.Equal(time.Unix(0, 0).UTC()) {
		t.Errorf("placeholder date = %v, want epoch", placeholder.Date)
	}
}

// TestPickWinner pins the score-then-recency ordering.
func TestPickWinner(t *testing.T) {
	old := &domain.PriceCandidate{Score: 80, EmailDate: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &domain.PriceCandidate{Score: 80, EmailDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}
	strong := &domain.PriceCandidate{Score: 95, EmailDate: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}

	if got := pickWinner([]*domain.PriceCandidate{old, newer}); got != newer {
		t.Error("equal scores: latest date should win")
	}
	if got := pickWinner([]*domain.PriceCandidate{newer, strong}); got != strong {
		t.Error("higher score should beat recency")
	}
}
