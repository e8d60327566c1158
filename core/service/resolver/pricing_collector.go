package resolver

import (
	"context"
	"sync"
	"time"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
	"pricing_server/core/service/classifier"
	"pricing_server/pkg/logger"
)

// =============================================================================
// Evidence Collector
// =============================================================================

const defaultSearchCap = 30

// Collector fans the evidence search out over every operator mailbox account
// and returns classified candidate emails. No price logic lives here.
type Collector struct {
	provider   out.MailboxProvider
	classifier *classifier.Classifier
	accounts   []string
	searchCap  int
	log        *logger.Logger
}

// NewCollector creates a collector over the given accounts. searchCap bounds
// messages per account; <=0 uses the default.
func NewCollector(provider out.MailboxProvider, cls *classifier.Classifier, accounts []string, searchCap int) *Collector {
	if searchCap <= 0 {
		searchCap = defaultSearchCap
	}
	return &Collector{
		provider:   provider,
		classifier: cls,
		accounts:   accounts,
		searchCap:  searchCap,
		log:        logger.WithField("component", "collector"),
	}
}

// Collect gathers every email mentioning the domain across all accounts.
// Account searches run concurrently; one account failing yields an empty
// result for that account only.
func (c *Collector) Collect(ctx context.Context, dom string) []*domain.CandidateEmail {
	var (
		mu     sync.Mutex
		emails []*domain.CandidateEmail
		wg     sync.WaitGroup
	)
	for _, account := range c.accounts {
		wg.Add(1)
		go func(account string) {
			defer wg.Done()
			found := c.collectAccount(ctx, account, dom)
			mu.Lock()
			emails = append(emails, found...)
			mu.Unlock()
		}(account)
	}
	wg.Wait()
	return emails
}

func (c *Collector) collectAccount(ctx context.Context, account, dom string) []*domain.CandidateEmail {
	ids, err := c.provider.Search(ctx, account, dom, c.searchCap)
	if err != nil {
		c.log.WithError(err).Warn("search failed for account %s, continuing without it", account)
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	// Message fetches run concurrently; a single failed fetch degrades to a
	// scoreless placeholder instead of aborting the account.
	results := make([]*domain.CandidateEmail, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			email, err := c.provider.Fetch(ctx, account, id)
			if err != nil || email == nil {
				if err != nil {
					c.log.WithError(err).Warn("fetch failed for message %s in %s", id, account)
				}
				results[i] = &domain.CandidateEmail{
					ID:      id,
					Account: account,
					Date:    time.Unix(0, 0).UTC(),
					Classification: domain.Classification{
						Tier:  domain.TierUnknown,
						Score: 0,
					},
				}
				return
			}
			email.Account = account
			c.classifier.Classify(email, dom)
			results[i] = email
		}(i, id)
	}
	wg.Wait()
	return results
}
