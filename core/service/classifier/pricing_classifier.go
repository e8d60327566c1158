package classifier

import (
	"strings"

	"pricing_server/core/domain"
)

// Classifier scores emails for a fixed operator mailbox fleet. Score is a
// pure function of its inputs: same email, same domain, same verdict.
type Classifier struct {
	outbound map[string]struct{} // the operator's own sending addresses
}

// New creates a classifier that treats the given addresses as the
// operator's outbound mailboxes.
func New(outboundMailboxes []string) *Classifier {
	set := make(map[string]struct{}, len(outboundMailboxes))
	for _, m := range outboundMailboxes {
		set[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &Classifier{outbound: set}
}

// Score rates one email's trustworthiness as pricing evidence for
// targetDomain and returns the resulting classification.
func (c *Classifier) Score(from, subject, body, targetDomain string) domain.Classification {
	dom := domain.NormalizeDomain(targetDomain)
	in := &ruleInput{
		from:     strings.ToLower(from),
		subject:  strings.ToLower(subject),
		body:     strings.ToLower(body),
		domain:   dom,
		label:    domain.DomainFirstLabel(dom),
		reply:    replyPrefixRe.MatchString(subject),
		outbound: c.isOutbound(from),
	}
	in.combined = in.subject + " " + in.body

	score := BaseScore
	for _, r := range rules {
		if delta, hit := r.apply(in); hit {
			score += delta
		}
	}

	if !in.outbound && in.domain != "" && strings.Contains(in.from, in.domain) && score < SenderAtDomainFloor {
		score = SenderAtDomainFloor
	}

	tier := domain.TierFromScore(score)
	if in.outbound {
		tier = domain.TierOutbound
	}
	return domain.Classification{Tier: tier, Score: score}
}

// Classify scores a candidate email in place.
func (c *Classifier) Classify(email *domain.CandidateEmail, targetDomain string) {
	email.Classification = c.Score(email.From, email.Subject, email.Body, targetDomain)
}

// IsOutbound reports whether the address is one of the operator's own
// sending mailboxes.
func (c *Classifier) IsOutbound(address string) bool {
	return c.isOutbound(address)
}

func (c *Classifier) isOutbound(address string) bool {
	addr := strings.ToLower(strings.TrimSpace(address))
	if _, ok := c.outbound[addr]; ok {
		return true
	}
	// Headers often carry "Name <addr>" forms.
	if start := strings.IndexByte(addr, '<'); start >= 0 {
		if end := strings.IndexByte(addr[start:], '>'); end > 0 {
			if _, ok := c.outbound[addr[start+1:start+end]]; ok {
				return true
			}
		}
	}
	return false
}
