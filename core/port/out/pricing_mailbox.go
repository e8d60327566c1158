// Package out defines outbound ports: the interfaces the core needs from
// external collaborators.
package out

import (
	"context"

	"pricing_server/core/domain"
)

// MailboxProvider searches and fetches messages for one operator mailbox
// account. Implementations must return an empty slice, not an error, when a
// search matches nothing, and should list newest-first.
type MailboxProvider interface {
	// Search returns message ids mentioning the query text, capped at max.
	Search(ctx context.Context, account string, query string, max int) ([]string, error)

	// Fetch retrieves the full content of one message, attachments included.
	Fetch(ctx context.Context, account string, id string) (*domain.CandidateEmail, error)
}
