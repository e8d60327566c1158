// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"pricing_server/core/port/out"
	"pricing_server/pkg/apperr"
)

// =============================================================================
// Evidence Archive Adapter
// =============================================================================

const collectionEvidence = "pricing_evidence"

// EvidenceAdapter implements out.EvidenceArchive using MongoDB. Evidence
// documents are the audit trail behind every resolved price: the exact
// content the oracle saw plus the grounding matches that validated it.
type EvidenceAdapter struct {
	collection *mongo.Collection
}

var _ out.EvidenceArchive = (*EvidenceAdapter)(nil)

// NewEvidenceAdapter creates a new evidence archive adapter.
func NewEvidenceAdapter(db *mongo.Database) *EvidenceAdapter {
	return &EvidenceAdapter{collection: db.Collection(collectionEvidence)}
}

// EnsureIndexes creates necessary indexes for the collection.
func (a *EvidenceAdapter) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "domain", Value: 1}, {Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "account", Value: 1}},
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Save archives one evidence snapshot.
func (a *EvidenceAdapter) Save(ctx context.Context, ev *out.Evidence) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if _, err := a.collection.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("save evidence: %w", err)
	}
	return nil
}

// GetByDomain returns the most recent evidence snapshot for a domain.
func (a *EvidenceAdapter) GetByDomain(ctx context.Context, domain string) (*out.Evidence, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var ev out.Evidence
	err := a.collection.FindOne(ctx, bson.M{"domain": domain}, opts).Decode(&ev)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.NotFound("evidence")
	}
	if err != nil {
		return nil, fmt.Errorf("get evidence: %w", err)
	}
	return &ev, nil
}
