package http

import (
	"time"

	"pricing_server/core/domain"
	in "pricing_server/core/port/in"

	"github.com/gofiber/fiber/v2"
)

// ResolveHandler handles HTTP requests for single-domain price resolution
type ResolveHandler struct {
	service in.ResolutionService
}

// NewResolveHandler creates a new ResolveHandler
func NewResolveHandler(service in.ResolutionService) *ResolveHandler {
	return &ResolveHandler{service: service}
}

// Register registers resolution routes
func (h *ResolveHandler) Register(router fiber.Router) {
	router.Post("/resolve", h.Resolve)
	router.Get("/prices/:domain", h.GetPrice)
}

// ResolveRequest is the payload for an ad-hoc resolution.
type ResolveRequest struct {
	Domain string `json:"domain"`
}

// Resolve runs the full evidence pipeline for one domain, synchronously
// @Summary Resolve a price for one domain
// @Tags Resolution
// @Accept json
// @Produce json
// @Param request body ResolveRequest true "Target domain"
// @Success 200 {object} ResolvedPriceResponse
// @Router /api/v1/resolve [post]
func (h *ResolveHandler) Resolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, 400, "invalid request body")
	}
	if req.Domain == "" {
		return ErrorResponse(c, 400, "domain is required")
	}

	rp, err := h.service.ResolvePrice(c.Context(), req.Domain)
	if err != nil {
		return AppErrorResponse(c, err)
	}
	if rp == nil {
		return c.JSON(fiber.Map{"found": false, "domain": req.Domain})
	}

	return c.JSON(fiber.Map{"found": true, "price": toResolvedPriceResponse(rp)})
}

// GetPrice returns the stored price for a domain
// @Summary Get a stored resolved price
// @Tags Resolution
// @Produce json
// @Param domain path string true "Domain"
// @Success 200 {object} ResolvedPriceResponse
// @Router /api/v1/prices/{domain} [get]
func (h *ResolveHandler) GetPrice(c *fiber.Ctx) error {
	dom := c.Params("domain")

	rp, err := h.service.GetResolved(c.Context(), dom)
	if err != nil {
		return AppErrorResponse(c, err)
	}

	return c.JSON(toResolvedPriceResponse(rp))
}

// =============================================================================
// Response Types
// =============================================================================

// ResolvedPriceResponse represents the HTTP response for a resolved price
type ResolvedPriceResponse struct {
	Domain             string   `json:"domain"`
	GuestPostPrice     *float64 `json:"guest_post_price,omitempty"`
	LinkInsertionPrice *float64 `json:"link_insertion_price,omitempty"`
	SponsoredPostPrice *float64 `json:"sponsored_post_price,omitempty"`
	HomepageLinkPrice  *float64 `json:"homepage_link_price,omitempty"`
	CasinoPrice        *float64 `json:"casino_price,omitempty"`
	CasinoAccepted     string   `json:"casino_accepted,omitempty"`
	Currency           string   `json:"currency,omitempty"`
	SourceContact      string   `json:"source_contact,omitempty"`
	SourceSubject      string   `json:"source_subject,omitempty"`
	SourceAccount      string   `json:"source_account,omitempty"`
	Confidence         float64  `json:"confidence"`
	Score              int      `json:"score"`
	EmailDate          string   `json:"email_date"`
	ResolvedAt         string   `json:"resolved_at"`
}

func toResolvedPriceResponse(rp *domain.ResolvedPrice) ResolvedPriceResponse {
	return ResolvedPriceResponse{
		Domain:             rp.Domain,
		GuestPostPrice:     rp.GuestPostPrice,
		LinkInsertionPrice: rp.LinkInsertionPrice,
		SponsoredPostPrice: rp.SponsoredPostPrice,
		HomepageLinkPrice:  rp.HomepageLinkPrice,
		CasinoPrice:        rp.CasinoPrice,
		CasinoAccepted:     rp.CasinoAccepted,
		Currency:           rp.Currency,
		SourceContact:      rp.SourceContact,
		SourceSubject:      rp.SourceSubject,
		SourceAccount:      rp.SourceAccount,
		Confidence:         rp.Confidence,
		Score:              rp.Score,
		EmailDate:          rp.EmailDate.Format(time.RFC3339),
		ResolvedAt:         rp.ResolvedAt.Format(time.RFC3339),
	}
}
