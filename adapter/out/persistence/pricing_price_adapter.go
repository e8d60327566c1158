package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"pricing_server/core/domain"
	"pricing_server/core/port/out"
	"pricing_server/pkg/apperr"
)

// ResolvedPriceRepository implements out.ResolvedPriceRepository on Postgres.
// One row per domain, newest resolution wins.
type ResolvedPriceRepository struct {
	db *sqlx.DB
}

// NewResolvedPriceRepository creates a new ResolvedPriceRepository.
func NewResolvedPriceRepository(db *sqlx.DB) out.ResolvedPriceRepository {
	return &ResolvedPriceRepository{db: db}
}

type resolvedPriceRow struct {
	Domain             string    `db:"domain"`
	GuestPostPrice     *float64  `db:"guest_post_price"`
	LinkInsertionPrice *float64  `db:"link_insertion_price"`
	SponsoredPostPrice *float64  `db:"sponsored_post_price"`
	HomepageLinkPrice  *float64  `db:"homepage_link_price"`
	CasinoPrice        *float64  `db:"casino_price"`
	CasinoAccepted     string    `db:"casino_accepted"`
	Currency           string    `db:"currency"`
	SourceContact      string    `db:"source_contact"`
	SourceSubject      string    `db:"source_subject"`
	SourceAccount      string    `db:"source_account"`
	Confidence         float64   `db:"confidence"`
	Score              int       `db:"score"`
	EmailDate          time.Time `db:"email_date"`
	ResolvedAt         time.Time `db:"resolved_at"`
}

func (r resolvedPriceRow) toDomain() *domain.ResolvedPrice {
	return &domain.ResolvedPrice{
		Domain:             r.Domain,
		GuestPostPrice:     r.GuestPostPrice,
		LinkInsertionPrice: r.LinkInsertionPrice,
		SponsoredPostPrice: r.SponsoredPostPrice,
		HomepageLinkPrice:  r.HomepageLinkPrice,
		CasinoPrice:        r.CasinoPrice,
		CasinoAccepted:     r.CasinoAccepted,
		Currency:           r.Currency,
		SourceContact:      r.SourceContact,
		SourceSubject:      r.SourceSubject,
		SourceAccount:      r.SourceAccount,
		Confidence:         r.Confidence,
		Score:              r.Score,
		EmailDate:          r.EmailDate,
		ResolvedAt:         r.ResolvedAt,
	}
}

func (r *ResolvedPriceRepository) Upsert(ctx context.Context, rp *domain.ResolvedPrice) error {
	query := `
		INSERT INTO resolved_prices (
			domain, guest_post_price, link_insertion_price, sponsored_post_price,
			homepage_link_price, casino_price, casino_accepted, currency,
			source_contact, source_subject, source_account, confidence, score,
			email_date, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (domain) DO UPDATE SET
			guest_post_price = EXCLUDED.guest_post_price,
			link_insertion_price = EXCLUDED.link_insertion_price,
			sponsored_post_price = EXCLUDED.sponsored_post_price,
			homepage_link_price = EXCLUDED.homepage_link_price,
			casino_price = EXCLUDED.casino_price,
			casino_accepted = EXCLUDED.casino_accepted,
			currency = EXCLUDED.currency,
			source_contact = EXCLUDED.source_contact,
			source_subject = EXCLUDED.source_subject,
			source_account = EXCLUDED.source_account,
			confidence = EXCLUDED.confidence,
			score = EXCLUDED.score,
			email_date = EXCLUDED.email_date,
			resolved_at = EXCLUDED.resolved_at`

	if _, err := r.db.ExecContext(ctx, query,
		rp.Domain, rp.GuestPostPrice, rp.LinkInsertionPrice, rp.SponsoredPostPrice,
		rp.HomepageLinkPrice, rp.CasinoPrice, rp.CasinoAccepted, rp.Currency,
		rp.SourceContact, rp.SourceSubject, rp.SourceAccount, rp.Confidence,
		rp.Score, rp.EmailDate, rp.ResolvedAt); err != nil {
		return fmt.Errorf("upsert resolved price: %w", err)
	}
	return nil
}

func (r *ResolvedPriceRepository) GetByDomain(ctx context.Context, dom string) (*domain.ResolvedPrice, error) {
	query := `
		SELECT domain, guest_post_price, link_insertion_price, sponsored_post_price,
		       homepage_link_price, casino_price, casino_accepted, currency,
		       source_contact, source_subject, source_account, confidence, score,
		       email_date, resolved_at
		FROM resolved_prices
		WHERE domain = $1`

	var row resolvedPriceRow
	if err := r.db.GetContext(ctx, &row, query, dom); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("resolved price")
		}
		return nil, fmt.Errorf("get resolved price: %w", err)
	}
	return row.toDomain(), nil
}
