package notify

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/jrmarot/bidhouse/internal/domain"
)

// InvoiceGenerator renders a sale document for a settlement. The result is
// attached to the buyer and seller emails and can be archived alongside the
// settlement record.
type InvoiceGenerator interface {
	Generate(ctx context.Context, s domain.Settlement) ([]byte, error)
}

var invoiceTmpl = template.Must(template.New("invoice").Parse(`BIDHOUSE INVOICE
================

Invoice for auction: {{.Title}}
Auction ID:          {{.AuctionID}}
Date:                {{.ClosedAt.Format "2006-01-02 15:04:05 MST"}}

Buyer:               {{.BuyerName}} ({{.BuyerID}})
Seller:              {{.SellerID}}

Sale amount:         {{.SaleAmount}}
{{- if .ViaCounter}}
Settled via counter-offer.
{{- end}}

This document records the final sale of the item above through a completed
auction. Amounts are in the platform's settlement currency.
`))

// TextInvoicer renders plain-text invoices from a fixed template.
type TextInvoicer struct{}

// NewTextInvoicer creates a TextInvoicer.
func NewTextInvoicer() *TextInvoicer {
	return &TextInvoicer{}
}

var _ InvoiceGenerator = (*TextInvoicer)(nil)

// Generate renders the invoice for s.
func (TextInvoicer) Generate(_ context.Context, s domain.Settlement) ([]byte, error) {
	var buf bytes.Buffer
	if err := invoiceTmpl.Execute(&buf, s); err != nil {
		return nil, fmt.Errorf("invoice: render: %w", err)
	}
	return buf.Bytes(), nil
}
