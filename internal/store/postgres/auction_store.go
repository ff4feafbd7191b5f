package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given connection
// pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// auctionSelectCols lists the columns selected when reading auctions.
const auctionSelectCols = `id, seller_id, title, description,
	starting_price::text, bid_increment::text,
	start_at, end_at, status, created_at, updated_at`

func scanAuctionFromRow(
	scanner interface{ Scan(dest ...any) error },
) (domain.Auction, error) {
	var a domain.Auction
	var status, startingPrice, bidIncrement string

	err := scanner.Scan(
		&a.ID, &a.SellerID, &a.Title, &a.Description,
		&startingPrice, &bidIncrement,
		&a.StartAt, &a.EndAt, &status, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Auction{}, err
	}

	a.Status = domain.AuctionStatus(status)
	if a.StartingPrice, err = decimal.NewFromString(startingPrice); err != nil {
		return domain.Auction{}, fmt.Errorf("parse starting_price: %w", err)
	}
	if a.BidIncrement, err = decimal.NewFromString(bidIncrement); err != nil {
		return domain.Auction{}, fmt.Errorf("parse bid_increment: %w", err)
	}
	return a, nil
}

func scanAuctionRows(rows pgx.Rows) ([]domain.Auction, error) {
	var auctions []domain.Auction
	for rows.Next() {
		a, err := scanAuctionFromRow(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, a)
	}
	return auctions, rows.Err()
}

// Create inserts a new auction.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	const query = `
		INSERT INTO auctions (
			id, seller_id, title, description,
			starting_price, bid_increment,
			start_at, end_at, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8, $9, NOW(), NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		a.ID, a.SellerID, a.Title, a.Description,
		a.StartingPrice.String(), a.BidIncrement.String(),
		a.StartAt, a.EndAt, string(a.Status),
	)
	if err != nil {
		return fmt.Errorf("postgres: create auction %s: %w", a.ID, err)
	}
	return nil
}

// GetByID retrieves a single auction by ID.
func (s *AuctionStore) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions WHERE id = $1`, id)

	a, err := scanAuctionFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s: %w", id, err)
	}
	return a, nil
}

// UpdateStatus changes the status of an existing auction.
func (s *AuctionStore) UpdateStatus(ctx context.Context, id string, status domain.AuctionStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE auctions SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update auction status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes an auction. Bids cascade at the schema level.
func (s *AuctionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete auction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByStatus returns auctions in the given status, newest first.
func (s *AuctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + ` FROM auctions
		WHERE status = $1 ORDER BY created_at DESC`
	args := []any{string(status)}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions by status: %w", err)
	}
	defer rows.Close()

	auctions, err := scanAuctionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions by status: %w", err)
	}
	return auctions, nil
}

// CountByStatus returns the number of auctions in the given status.
func (s *AuctionStore) CountByStatus(ctx context.Context, status domain.AuctionStatus) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM auctions WHERE status = $1`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count auctions by status: %w", err)
	}
	return n, nil
}

// DueToStart returns scheduled auctions whose start time has passed.
func (s *AuctionStore) DueToStart(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE status = 'scheduled' AND start_at <= $1
		 ORDER BY start_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions due to start: %w", err)
	}
	defer rows.Close()

	auctions, err := scanAuctionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions due to start: %w", err)
	}
	return auctions, nil
}

// DueToEnd returns live auctions whose end time has passed.
func (s *AuctionStore) DueToEnd(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE status = 'live' AND end_at <= $1
		 ORDER BY end_at ASC`, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions due to end: %w", err)
	}
	defer rows.Close()

	auctions, err := scanAuctionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions due to end: %w", err)
	}
	return auctions, nil
}

// NextScheduled returns the scheduled auction that starts soonest after now.
func (s *AuctionStore) NextScheduled(ctx context.Context, now time.Time) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE status = 'scheduled' AND start_at > $1
		 ORDER BY start_at ASC LIMIT 1`, now)

	a, err := scanAuctionFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: next scheduled auction: %w", err)
	}
	return a, nil
}

// EndingBetween returns live auctions ending inside [from, to], soonest
// first.
func (s *AuctionStore) EndingBetween(ctx context.Context, from, to time.Time, limit int) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionSelectCols+` FROM auctions
		 WHERE status = 'live' AND end_at BETWEEN $1 AND $2
		 ORDER BY end_at ASC LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions ending soon: %w", err)
	}
	defer rows.Close()

	auctions, err := scanAuctionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions ending soon: %w", err)
	}
	return auctions, nil
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)
