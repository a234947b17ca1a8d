// Package aggregate groups normalized records into the fixed category buckets
// of a document.
package aggregate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rcliao/tally-replica/internal/model"
	"github.com/rcliao/tally-replica/internal/normalize"
)

// Mode selects how non-empty buckets are prefixed.
type Mode string

const (
	// ModeHeader prefixes a header row.
	ModeHeader Mode = "header"
	// ModeSpreadsheet prefixes a blank row and a header row.
	ModeSpreadsheet Mode = "spreadsheet"
)

// ParseMode validates a configured render mode. Empty means ModeHeader.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeHeader:
		return ModeHeader, nil
	case ModeSpreadsheet:
		return ModeSpreadsheet, nil
	}
	return "", fmt.Errorf("unknown render mode %q (use header or spreadsheet)", s)
}

// Options controls document assembly.
type Options struct {
	Mode   Mode
	Source string
	Time   string
}

// StatusOK is the status of every document built from a push.
const StatusOK = "ok"

// Build assembles a document from per-category batches. Categories missing
// from batches get empty buckets.
func Build(batches map[string]normalize.Batch, opts Options) *model.Document {
	doc := &model.Document{
		Status:   StatusOK,
		Time:     opts.Time,
		Source:   opts.Source,
		Counts:   make(map[string]int, len(model.Categories)),
		Rows:     make(map[string][]model.Row, len(model.Categories)),
		FlatRows: []model.Row{},
	}

	for _, c := range model.Categories {
		b := batches[c.Name]
		data := Rows(c.Kind, b)
		bucket := Bucket(c.Kind, data, opts.Mode)

		doc.Counts[c.Name] = len(data)
		doc.Rows[c.Name] = bucket
		doc.FlatRows = append(doc.FlatRows, bucket...)

		if c.Kind == model.KindVoucher && len(b.Vouchers) > 0 {
			if doc.Vouchers == nil {
				doc.Vouchers = make(map[string][]model.VoucherRecord)
			}
			doc.Vouchers[c.Name] = b.Vouchers
		}
	}
	return doc
}

// Bucket applies the render mode to data rows. An empty list stays empty;
// header-only buckets are never produced.
func Bucket(kind model.Kind, data []model.Row, mode Mode) []model.Row {
	if len(data) == 0 {
		return []model.Row{}
	}
	cols := model.Columns(kind)

	out := make([]model.Row, 0, len(data)+2)
	if mode == ModeSpreadsheet {
		blank := make(model.Row, len(cols))
		for _, c := range cols {
			blank[c] = ""
		}
		out = append(out, blank)
	}
	header := make(model.Row, len(cols))
	for _, c := range cols {
		header[c] = c
	}
	out = append(out, header)
	return append(out, data...)
}

// Rows renders the records of a batch as data rows of the given kind.
func Rows(kind model.Kind, b normalize.Batch) []model.Row {
	var out []model.Row
	switch kind {
	case model.KindMaster:
		for _, m := range b.Masters {
			out = append(out, model.Row{
				"Type":           m.Type,
				"Name":           m.Name,
				"Parent":         m.Parent,
				"OpeningBalance": m.OpeningBalance,
				"ClosingBalance": m.ClosingBalance,
				"Email":          m.Email,
			})
		}
	case model.KindOutstanding:
		for _, o := range b.Outstanding {
			out = append(out, model.Row{
				"Party":          o.Party,
				"ClosingBalance": o.ClosingBalance,
				"Days":           o.Days,
				"Contact":        o.Contact,
			})
		}
	default:
		for _, v := range b.Vouchers {
			out = append(out, voucherRow(v))
		}
	}
	return out
}

func voucherRow(v model.VoucherRecord) model.Row {
	var items, ledgers []string
	qty := decimal.Zero
	for _, it := range v.Items {
		if it.StockItemName != "" {
			items = append(items, it.StockItemName)
		}
		qty = qty.Add(it.Qty)
	}
	for _, l := range v.Ledgers {
		if l.LedgerName != "" {
			ledgers = append(ledgers, l.LedgerName)
		}
	}

	var qtyText string
	if len(v.Items) > 0 {
		qtyText = qty.String()
	}

	return model.Row{
		"Date":          v.Date,
		"VoucherType":   v.VoucherType,
		"VoucherNumber": v.VoucherNumber,
		"Party":         v.Party,
		"Salesman":      v.Salesman,
		"State":         v.State,
		"Amount":        v.Amount.String(),
		"Narration":     v.Narration,
		"Items":         strings.Join(items, "; "),
		"Qty":           qtyText,
		"Ledgers":       strings.Join(ledgers, "; "),
	}
}
