package extractor

import "testing"

// TestPriceExistsInContent pins the strict grounding rules.
func TestPriceExistsInContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		price   float64
		want    bool
	}{
		{
			name:    "currency symbol adjacent",
			content: "Guest post price: $200, casino not accepted",
			price:   200,
			want:    true,
		},
		{
			name:    "currency code adjacent",
			content: "we charge 250 USD per post",
			price:   250,
			want:    true,
		},
		{
			name:    "price keyword proximity",
			content: "the agreed amount is 300 for a permanent link",
			price:   300,
			want:    true,
		},
		{
			name:    "number absent entirely",
			content: "Guest post price: $200",
			price:   9999,
			want:    false,
		},
		{
			name:    "bare number without any price context",
			content: "our site has 500 visitors daily and a DR of 52",
			price:   500,
			want:    false,
		},
		{
			name:    "number inside a larger number does not ground",
			content: "traffic is 12000 monthly",
			price:   200,
			want:    false,
		},
		{
			name:    "thousand separator form",
			content: "homepage link costs $1,200 per year",
			price:   1200,
			want:    true,
		},
		{
			name:    "decimal rendering",
			content: "price is 149.50 EUR",
			price:   149.5,
			want:    true,
		},
		{
			name:    "empty content",
			content: "",
			price:   100,
			want:    false,
		},
		{
			name:    "metric number near authority keyword only",
			content: "DA 55, traffic 40000, founded 2008",
			price:   55,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceExistsInContent(tt.content, tt.price); got != tt.want {
				t.Errorf("PriceExistsInContent(%q, %v) = %v, want %v", tt.content, tt.price, got, tt.want)
			}
		})
	}
}

// TestResolveContact covers the prioritized contact pattern order.
func TestResolveContact(t *testing.T) {
	outbound := func(addr string) bool {
		return addr == "outreach@linkdesk.io" || addr == "Link Desk <outreach@linkdesk.io>"
	}

	tests := []struct {
		name string
		from string
		body string
		want string
	}{
		{
			name: "external sender used as-is",
			from: "webmaster@example.com",
			body: "anything",
			want: "webmaster@example.com",
		},
		{
			name: "angle-bracket sender stripped to bare address",
			from: "Jane Doe <jane@example.com>",
			body: "anything",
			want: "jane@example.com",
		},
		{
			name: "outbound sender resolves via quoted From header",
			from: "outreach@linkdesk.io",
			body: "Our offer below.\n\n> From: Publisher <owner@example.com>\n> Subject: Re: pricing",
			want: "owner@example.com",
		},
		{
			name: "outbound sender resolves via wrote attribution",
			from: "outreach@linkdesk.io",
			body: "On Tue, editor@example.com wrote:\n> price is $200",
			want: "editor@example.com",
		},
		{
			name: "no-reply addresses are skipped",
			from: "outreach@linkdesk.io",
			body: "From: <no-reply@mailer.example.com>\ncontact us at admin@example.com",
			want: "admin@example.com",
		},
		{
			name: "operator addresses in body are skipped",
			from: "outreach@linkdesk.io",
			body: "outreach@linkdesk.io sent this to owner@example.com",
			want: "owner@example.com",
		},
		{
			name: "nothing usable",
			from: "outreach@linkdesk.io",
			body: "no addresses here",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveContact(tt.from, tt.body, outbound); got != tt.want {
				t.Errorf("ResolveContact() = %q, want %q", got, tt.want)
			}
		})
	}
}
