package resolver

import (
	"context"
	"time"

	"pricing_server/core/domain"
	"pricing_server/core/port/in"
	"pricing_server/core/port/out"
	"pricing_server/pkg/apperr"
	"pricing_server/pkg/logger"
)

const resolvedCacheTTL = 10 * time.Minute

// Service exposes on-demand single-domain resolution and stored-price reads.
// Batch runs go through the scheduler instead.
type Service struct {
	resolver *Resolver
	prices   out.ResolvedPriceRepository
	cache    out.Cache
	log      *logger.Logger
}

var _ in.ResolutionService = (*Service)(nil)

// NewService creates the resolution service. cache may be nil.
func NewService(r *Resolver, prices out.ResolvedPriceRepository, cache out.Cache) *Service {
	return &Service{
		resolver: r,
		prices:   prices,
		cache:    cache,
		log:      logger.WithField("component", "resolution_service"),
	}
}

// ResolvePrice runs the full pipeline for one domain and persists the winner.
// (nil, nil) means the archive holds no grounded evidence.
func (s *Service) ResolvePrice(ctx context.Context, dom string) (*domain.ResolvedPrice, error) {
	nd := domain.NormalizeDomain(dom)
	if nd == "" {
		return nil, apperr.InvalidInput("domain", "empty after normalization")
	}

	// A fresh cached resolution answers the request without re-mining the
	// mailbox archive.
	if s.cache != nil {
		var cached domain.ResolvedPrice
		if ok, err := s.cache.GetJSON(ctx, cacheKey(nd), &cached); err == nil && ok {
			return &cached, nil
		}
	}

	cand, err := s.resolver.Resolve(ctx, nd)
	if err != nil {
		return nil, err
	}
	if cand == nil {
		return nil, nil
	}

	rp := domain.FromCandidate(cand, time.Now().UTC())
	if err := s.prices.Upsert(ctx, rp); err != nil {
		return nil, apperr.DatabaseError("store resolved price", err)
	}
	s.cacheSet(ctx, nd, rp)
	return rp, nil
}

// GetResolved returns the stored price for a domain.
func (s *Service) GetResolved(ctx context.Context, dom string) (*domain.ResolvedPrice, error) {
	nd := domain.NormalizeDomain(dom)
	if nd == "" {
		return nil, apperr.InvalidInput("domain", "empty after normalization")
	}

	if s.cache != nil {
		var cached domain.ResolvedPrice
		if ok, err := s.cache.GetJSON(ctx, cacheKey(nd), &cached); err == nil && ok {
			return &cached, nil
		}
	}

	rp, err := s.prices.GetByDomain(ctx, nd)
	if err != nil {
		return nil, err
	}
	s.cacheSet(ctx, nd, rp)
	return rp, nil
}

func (s *Service) cacheSet(ctx context.Context, nd string, rp *domain.ResolvedPrice) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, cacheKey(nd), rp, resolvedCacheTTL); err != nil {
		s.log.WithError(err).Debug("resolved price cache write failed")
	}
}

func cacheKey(nd string) string { return "resolved_price:" + nd }
