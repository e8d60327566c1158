package out

import "context"

// ContactGraph records which contact priced which domain, for outreach
// follow-up queries.
type ContactGraph interface {
	RecordContact(ctx context.Context, domain string, contact string, account string) error
	ContactsForDomain(ctx context.Context, domain string) ([]string, error)
}
