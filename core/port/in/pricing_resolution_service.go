package in

import (
	"context"

	"pricing_server/core/domain"
)

// ResolutionService resolves the best-supported price for a single domain.
type ResolutionService interface {
	// ResolvePrice mines the mailbox fleet for evidence and returns the
	// selected price, or (nil, nil) when no evidence supports one.
	ResolvePrice(ctx context.Context, dom string) (*domain.ResolvedPrice, error)

	// GetResolved returns the stored price for a domain, if any.
	GetResolved(ctx context.Context, dom string) (*domain.ResolvedPrice, error)
}
