package out

import (
	"context"
	"time"
)

// Evidence is the archived source snapshot behind a resolved price: the
// combined content the oracle saw plus the validation matches that grounded
// each accepted number.
type Evidence struct {
	Domain            string    `bson:"domain"`
	Account           string    `bson:"account"`
	EmailID           string    `bson:"email_id"`
	Subject           string    `bson:"subject"`
	Content           string    `bson:"content"`
	ValidationMatches []string  `bson:"validation_matches"`
	CreatedAt         time.Time `bson:"created_at"`
}

// EvidenceArchive stores resolution evidence for audit.
type EvidenceArchive interface {
	Save(ctx context.Context, ev *Evidence) error
	GetByDomain(ctx context.Context, domain string) (*Evidence, error)
}
