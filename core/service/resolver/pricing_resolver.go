package resolver

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
	"pricing_server/core/service/extractor"
	"pricing_server/pkg/logger"
)

// =============================================================================
// Price Resolver
// =============================================================================
//
// The resolver walks classified evidence in trust order. Direct webmaster
// replies (score >= 70) are consulted first; if that band produces even one
// grounded candidate, lower bands are never touched. Within a band, both the
// number of extraction attempts and the number of successful sources are
// capped so one noisy domain cannot burn the oracle budget.

const (
	bandDirectMin = 70
	bandMidMin    = 40

	defaultMaxSourcesPerBand  = 5
	defaultMaxAttemptsPerBand = 15
)

// Config bounds resolver work per trust band.
type Config struct {
	MaxSourcesPerBand  int
	MaxAttemptsPerBand int
}

func (c Config) withDefaults() Config {
	if c.MaxSourcesPerBand <= 0 {
		c.MaxSourcesPerBand = defaultMaxSourcesPerBand
	}
	if c.MaxAttemptsPerBand <= 0 {
		c.MaxAttemptsPerBand = defaultMaxAttemptsPerBand
	}
	return c
}

// Resolver selects the best grounded price candidate for one domain.
// Archive and graph are best-effort side channels; either may be nil.
type Resolver struct {
	collector *Collector
	extractor *extractor.Extractor
	archive   out.EvidenceArchive
	graph     out.ContactGraph
	cfg       Config
	log       *logger.Logger
}

// New creates a resolver.
func New(collector *Collector, ext *extractor.Extractor, archive out.EvidenceArchive, graph out.ContactGraph, cfg Config) *Resolver {
	return &Resolver{
		collector: collector,
		extractor: ext,
		archive:   archive,
		graph:     graph,
		cfg:       cfg.withDefaults(),
		log:       logger.WithField("component", "resolver"),
	}
}

// Resolve collects, classifies and extracts until a winner emerges. Returns
// (nil, nil) when no grounded candidate exists; that is an answer, not an
// error. Only context cancellation propagates as an error.
func (r *Resolver) Resolve(ctx context.Context, targetDomain string) (*domain.PriceCandidate, error) {
	dom := domain.NormalizeDomain(targetDomain)

	emails := r.collector.Collect(ctx, dom)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, nil
	}

	sort.SliceStable(emails, func(i, j int) bool {
		si, sj := emails[i].Classification.Score, emails[j].Classification.Score
		if si != sj {
			return si > sj
		}
		return emails[i].Date.After(emails[j].Date)
	})

	var direct, mid, low []*domain.CandidateEmail
	for _, e := range emails {
		switch s := e.Classification.Score; {
		case s >= bandDirectMin:
			direct = append(direct, e)
		case s >= bandMidMin:
			mid = append(mid, e)
		default:
			low = append(low, e)
		}
	}

	pricedSenders := make(map[string]struct{})
	var gathered []*domain.PriceCandidate
	for _, band := range [][]*domain.CandidateEmail{direct, mid, low} {
		found, err := r.walkBand(ctx, dom, band, pricedSenders)
		if err != nil {
			return nil, err
		}
		gathered = append(gathered, found...)
		if len(gathered) > 0 {
			break
		}
	}
	if len(gathered) == 0 {
		r.log.Info("no grounded price found for %s across %d emails", dom, len(emails))
		return nil, nil
	}
	return pickWinner(gathered), nil
}

// walkBand extracts from one trust band under the attempt and source caps,
// skipping senders that already produced a price.
func (r *Resolver) walkBand(ctx context.Context, dom string, band []*domain.CandidateEmail, pricedSenders map[string]struct{}) ([]*domain.PriceCandidate, error) {
	var candidates []*domain.PriceCandidate
	attempts := 0
	for _, email := range band {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempts >= r.cfg.MaxAttemptsPerBand || len(candidates) >= r.cfg.MaxSourcesPerBand {
			break
		}
		sender := senderKey(email.From)
		if sender != "" {
			if _, done := pricedSenders[sender]; done {
				continue
			}
		}

		attempts++
		res, err := r.extractor.Extract(ctx, email, dom)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.log.WithError(err).Warn("extraction failed for message %s, skipping", email.ID)
			continue
		}
		if res == nil || res.Candidate == nil || !res.Candidate.HasAnyPrice() {
			continue
		}

		if sender != "" {
			pricedSenders[sender] = struct{}{}
		}
		candidates = append(candidates, res.Candidate)
		r.record(ctx, dom, email, res)
	}
	return candidates, nil
}

// pickWinner takes the highest score, latest email date breaking ties.
func pickWinner(candidates []*domain.PriceCandidate) *domain.PriceCandidate {
	winner := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > winner.Score || (c.Score == winner.Score && c.EmailDate.After(winner.EmailDate)) {
			winner = c
		}
	}
	return winner
}

// record archives the grounding evidence and the publisher contact.
// Failures here never affect resolution.
func (r *Resolver) record(ctx context.Context, dom string, email *domain.CandidateEmail, res *extractor.Result) {
	if r.archive != nil {
		ev := &out.Evidence{
			Domain:            dom,
			Account:           email.Account,
			EmailID:           email.ID,
			Subject:           email.Subject,
			Content:           res.Content,
			ValidationMatches: res.ValidationMatches,
			CreatedAt:         time.Now().UTC(),
		}
		if err := r.archive.Save(ctx, ev); err != nil {
			r.log.WithError(err).Warn("evidence archive save failed for %s", dom)
		}
	}
	if r.graph != nil && res.Candidate.SourceContact != "" {
		if err := r.graph.RecordContact(ctx, dom, res.Candidate.SourceContact, email.Account); err != nil {
			r.log.WithError(err).Warn("contact graph record failed for %s", dom)
		}
	}
}

var senderAddrRe = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// senderKey normalizes a From header to a bare lowercase address.
func senderKey(from string) string {
	return strings.ToLower(senderAddrRe.FindString(from))
}
