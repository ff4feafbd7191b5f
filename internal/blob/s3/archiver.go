package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// Archiver implements domain.SettlementArchiver by serializing each
// settlement to JSON and uploading it to the configured bucket. One object
// per settlement, keyed by close date and auction ID, so a month of sales is
// a single prefix listing.
type Archiver struct {
	writer *Writer
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing under the given key prefix
// (e.g. "settlements").
func NewArchiver(w *Writer, prefix string, logger *slog.Logger) *Archiver {
	if prefix == "" {
		prefix = "settlements"
	}
	return &Archiver{
		writer: w,
		prefix: prefix,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

var _ domain.SettlementArchiver = (*Archiver)(nil)

// Archive uploads the settlement record. The key embeds the close date so
// objects sort chronologically: <prefix>/2026/01/<auctionID>.json.
func (a *Archiver) Archive(ctx context.Context, s domain.Settlement) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal settlement %s: %w", s.AuctionID, err)
	}

	key := fmt.Sprintf("%s/%s/%s.json", a.prefix, s.ClosedAt.UTC().Format("2006/01"), s.AuctionID)
	if err := a.writer.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "settlement archived",
		slog.String("auction_id", s.AuctionID),
		slog.String("key", key),
	)
	return nil
}
