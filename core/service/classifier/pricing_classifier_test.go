package classifier

import (
	"testing"

	"pricing_server/core/domain"
)

var testOutbound = []string{"outreach@linkdesk.io", "offers@linkdesk.io"}

// TestScoreRules pins the rule table against literal inputs.
func TestScoreRules(t *testing.T) {
	c := New(testOutbound)

	tests := []struct {
		name      string
		from      string
		subject   string
		body      string
		target    string
		wantTier  domain.Tier
		wantScore int
	}{
		{
			name:    "webmaster sender with pricing subject",
			from:    "webmaster@example.com",
			subject: "Guest post price for example.com",
			body:    "Guest post price: $200, casino not accepted",
			target:  "example.com",
			// base 30, unsolicited -15, pricing subject +25, sender at domain +70
			wantTier:  domain.TierDirectWebmaster,
			wantScore: 110,
		},
		{
			name:    "reply to outreach with confirmed deal",
			from:    "contact@foo.com",
			subject: "Re: Guest post on foo.com",
			body:    "$300 final, agreed",
			target:  "foo.com",
			// base 30, reply+domain +50, negotiation +25, sender at domain +70
			wantTier:  domain.TierDirectWebmaster,
			wantScore: 175,
		},
		{
			name:    "reply to outreach without domain in subject",
			from:    "editor@mailhost.net",
			subject: "RE: Sponsored post opportunity",
			body:    "Sure, we can discuss rates for example.com",
			target:  "example.com",
			// base 30, reply w/o domain +40
			wantTier:  domain.TierDirectWebmaster,
			wantScore: 70,
		},
		{
			name:    "outbound mailbox is tiered outbound regardless of score",
			from:    "outreach@linkdesk.io",
			subject: "Guest post price for example.com",
			body:    "Our price for example.com is $200",
			target:  "example.com",
			// base 30, outbound -50, pricing subject suppressed (outbound),
			// sender-at-domain does not fire (no example.com in sender)
			wantTier:  domain.TierOutbound,
			wantScore: -20,
		},
		{
			name:    "reseller network pitch",
			from:    "sales@linkagency.net",
			subject: "Guest post offer",
			body:    "We offer placements from our network of sites. foo.com for $50.",
			target:  "foo.com",
			// base 30, unsolicited -15, reseller -60
			wantTier:  domain.TierInvoice,
			wantScore: -45,
		},
		{
			name:    "invoice mail",
			from:    "billing@payments.example.net",
			subject: "Your order",
			body:    "Invoice attached, amount due $100 for example.com",
			target:  "example.com",
			// base 30, unsolicited -15, invoice -30
			wantTier:  domain.TierInvoice,
			wantScore: -15,
		},
		{
			name:    "subject about a different domain",
			from:    "writer@freelance.net",
			subject: "Guest post on othersite.com",
			body:    "Let me know",
			target:  "example.com",
			// base 30, unsolicited -15, foreign domain -40
			wantTier:  domain.TierInvoice,
			wantScore: -25,
		},
		{
			name:    "abbreviated sender prefix of domain label",
			from:    "travel.editor@gmail.com",
			subject: "hello",
			body:    "about your request",
			target:  "travelblogging.com",
			// base 30, unsolicited -15, prefix match +30
			wantTier:  domain.TierUnknown,
			wantScore: 45,
		},
		{
			name:    "short label requires whole-label match",
			from:    "carol@gmail.com",
			subject: "hello",
			body:    "hi",
			target:  "car.rental",
			// "car" must match whole; "carol" contains it, so +30 applies
			wantTier:  domain.TierUnknown,
			wantScore: 45,
		},
		{
			name:    "price list vocabulary bumps the score",
			from:    "admin@medianetwork.org",
			subject: "Rates for example.com",
			body:    "Please find our rate card attached.",
			target:  "example.com",
			// base 30, unsolicited -15, pricing subject +25, price-list +20
			wantTier:  domain.TierPriceList,
			wantScore: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Score(tt.from, tt.subject, tt.body, tt.target)
			if got.Score != tt.wantScore {
				t.Errorf("score = %d, want %d", got.Score, tt.wantScore)
			}
			if got.Tier != tt.wantTier {
				t.Errorf("tier = %v, want %v", got.Tier, tt.wantTier)
			}
		})
	}
}

// TestScoreDeterministic verifies the classifier is pure.
func TestScoreDeterministic(t *testing.T) {
	c := New(testOutbound)
	first := c.Score("webmaster@example.com", "Re: Guest post on example.com", "agreed, $250", "example.com")
	for i := 0; i < 10; i++ {
		got := c.Score("webmaster@example.com", "Re: Guest post on example.com", "agreed, $250", "example.com")
		if got != first {
			t.Fatalf("run %d: got %+v, want %+v", i, got, first)
		}
	}
}

// TestSenderAtDomainAlwaysDirect covers the strongest-signal property: a
// sender address containing the target domain tiers direct-webmaster unless
// the sender is an outbound mailbox.
func TestSenderAtDomainAlwaysDirect(t *testing.T) {
	c := New(testOutbound)

	got := c.Score("anyone@example.com", "random subject", "random body", "example.com")
	if got.Score < 70 {
		t.Errorf("score = %d, want >= 70", got.Score)
	}
	if got.Tier != domain.TierDirectWebmaster {
		t.Errorf("tier = %v, want direct-webmaster", got.Tier)
	}

	outbound := New([]string{"anyone@example.com"})
	got = outbound.Score("anyone@example.com", "random subject", "random body", "example.com")
	if got.Tier != domain.TierOutbound {
		t.Errorf("outbound sender: tier = %v, want outbound", got.Tier)
	}
}

// TestSenderAtDomainFloorBeatsNegativeVocab: negative vocabulary rules
// (reseller indicators, unsolicited markers) cannot demote the domain's own
// sender below direct-webmaster.
func TestSenderAtDomainFloorBeatsNegativeVocab(t *testing.T) {
	c := New(testOutbound)

	got := c.Score("webmaster@example.com", "hello",
		"we are not an outreach agency or reseller, price for example.com is $200",
		"example.com")
	if got.Score < SenderAtDomainFloor {
		t.Errorf("score = %d, want >= %d", got.Score, SenderAtDomainFloor)
	}
	if got.Tier != domain.TierDirectWebmaster {
		t.Errorf("tier = %v, want direct-webmaster", got.Tier)
	}

	// The floor never lifts an outbound mailbox out of its tier.
	outbound := New([]string{"webmaster@example.com"})
	got = outbound.Score("webmaster@example.com", "hello",
		"price for example.com is $200", "example.com")
	if got.Tier != domain.TierOutbound {
		t.Errorf("outbound sender: tier = %v, want outbound", got.Tier)
	}
}

// TestIsOutboundAngleBrackets checks header-form addresses are recognized.
func TestIsOutboundAngleBrackets(t *testing.T) {
	c := New(testOutbound)
	if !c.IsOutbound("Link Desk <outreach@linkdesk.io>") {
		t.Error("angle-bracket outbound address not recognized")
	}
	if c.IsOutbound("Someone <someone@example.com>") {
		t.Error("foreign address recognized as outbound")
	}
}
