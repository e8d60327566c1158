package out

import "context"

// AIExtraction is the oracle's untrusted answer for one domain. Every price
// in it must be independently re-validated against the source content before
// it can reach persisted state.
type AIExtraction struct {
	Found              bool     `json:"found"`
	GuestPostPrice     *float64 `json:"guest_post_price"`
	LinkInsertionPrice *float64 `json:"link_insertion_price"`
	SponsoredPostPrice *float64 `json:"sponsored_post_price"`
	HomepageLinkPrice  *float64 `json:"homepage_link_price"`
	CasinoPrice        *float64 `json:"casino_price"`
	CasinoAccepted     *bool    `json:"casino_accepted"`
	Currency           string   `json:"currency"`
	Confidence         float64  `json:"confidence"`
	Notes              string   `json:"notes"`
}

// AIExtractor is the price extraction oracle. Contract: return found=false
// rather than guess; prices are untrusted until re-located in the source.
type AIExtractor interface {
	ExtractForDomain(ctx context.Context, content string, targetDomain string) (*AIExtraction, error)
}
