package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given connection pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidSelectCols = `id, auction_id, bidder_id, amount::text, created_at`

func scanBidFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Bid, error) {
	var b domain.Bid
	var amount string

	err := scanner.Scan(&b.ID, &b.AuctionID, &b.BidderID, &amount, &b.CreatedAt)
	if err != nil {
		return domain.Bid{}, err
	}
	if b.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Bid{}, fmt.Errorf("parse amount: %w", err)
	}
	return b, nil
}

// Create inserts a new bid.
func (s *BidStore) Create(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (id, auction_id, bidder_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.AuctionID, b.BidderID, b.Amount.String(), b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create bid %s: %w", b.ID, err)
	}
	return nil
}

// GetByID retrieves a single bid by ID.
func (s *BidStore) GetByID(ctx context.Context, id string) (domain.Bid, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+bidSelectCols+` FROM bids WHERE id = $1`, id)

	b, err := scanBidFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: get bid %s: %w", id, err)
	}
	return b, nil
}

// Delete removes a bid.
func (s *BidStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bids WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete bid %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByAuction removes every bid on an auction.
func (s *BidStore) DeleteByAuction(ctx context.Context, auctionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM bids WHERE auction_id = $1`, auctionID); err != nil {
		return fmt.Errorf("postgres: delete bids for auction %s: %w", auctionID, err)
	}
	return nil
}

// TopByAuction returns the highest bids for an auction, descending by
// amount.
func (s *BidStore) TopByAuction(ctx context.Context, auctionID string, limit int) ([]domain.Bid, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+bidSelectCols+` FROM bids
		 WHERE auction_id = $1
		 ORDER BY amount DESC LIMIT $2`, auctionID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list top bids %s: %w", auctionID, err)
	}
	defer rows.Close()

	var bids []domain.Bid
	for rows.Next() {
		b, err := scanBidFromRow(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan top bids %s: %w", auctionID, err)
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

// Compile-time interface check.
var _ domain.BidStore = (*BidStore)(nil)
