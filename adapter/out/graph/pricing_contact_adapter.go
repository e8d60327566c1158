// Package graph implements Neo4j adapters for the application.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"pricing_server/core/port/out"
)

// =============================================================================
// Neo4j Contact Graph Adapter
// =============================================================================

// ContactAdapter implements out.ContactGraph using Neo4j. Every contact that
// ever quoted a price for a domain ends up here, including quotes from runs
// that did not win, so outreach can pick a known mailbox instead of a cold
// address.
type ContactAdapter struct {
	driver neo4j.DriverWithContext
	dbName string
}

// NewContactAdapter creates a new Neo4j contact graph adapter.
func NewContactAdapter(driver neo4j.DriverWithContext, dbName string) *ContactAdapter {
	return &ContactAdapter{
		driver: driver,
		dbName: dbName,
	}
}

// EnsureIndexes creates necessary indexes for the contact graph.
func (a *ContactAdapter) EnsureIndexes(ctx context.Context) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	queries := []string{
		`CREATE CONSTRAINT website_domain_unique IF NOT EXISTS FOR (w:Website) REQUIRE w.domain IS UNIQUE`,
		`CREATE CONSTRAINT contact_address_unique IF NOT EXISTS FOR (c:Contact) REQUIRE c.address IS UNIQUE`,
		`CREATE INDEX contact_account_idx IF NOT EXISTS FOR (c:Contact) ON (c.account)`,
	}

	for _, query := range queries {
		_, err := session.Run(ctx, query, nil)
		if err != nil {
			// Ignore errors for existing indexes
			continue
		}
	}

	return nil
}

// RecordContact links a contact address to a domain it priced.
func (a *ContactAdapter) RecordContact(ctx context.Context, domain, contact, account string) error {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	query := `
		MERGE (w:Website {domain: $domain})
		MERGE (c:Contact {address: $contact})
		SET c.account = $account
		MERGE (c)-[r:PRICED]->(w)
		SET r.last_seen = timestamp()
	`

	params := map[string]interface{}{
		"domain":  domain,
		"contact": contact,
		"account": account,
	}

	_, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("failed to record contact: %w", err)
	}

	return nil
}

// ContactsForDomain returns known pricing contacts for a domain, most
// recently seen first.
func (a *ContactAdapter) ContactsForDomain(ctx context.Context, domain string) ([]string, error) {
	session := a.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: a.dbName})
	defer session.Close(ctx)

	query := `
		MATCH (c:Contact)-[r:PRICED]->(w:Website {domain: $domain})
		RETURN c.address AS address
		ORDER BY r.last_seen DESC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"domain": domain})
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}

	var contacts []string
	for result.Next(ctx) {
		if addr, ok := result.Record().Get("address"); ok {
			if s, ok := addr.(string); ok {
				contacts = append(contacts, s)
			}
		}
	}

	return contacts, result.Err()
}

// =============================================================================
// Interface Compliance
// =============================================================================

var _ out.ContactGraph = (*ContactAdapter)(nil)
