// Package normalize maps Tally XML blocks onto voucher, master and
// outstanding records.
package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rcliao/tally-replica/internal/model"
	"github.com/rcliao/tally-replica/internal/xmltree"
)

// Batch holds the records normalized from one category's XML.
type Batch struct {
	Vouchers    []model.VoucherRecord
	Masters     []model.MasterRecord
	Outstanding []model.OutstandingRecord
}

// Len is the number of records of the batch's kind.
func (b Batch) Len() int {
	return len(b.Vouchers) + len(b.Masters) + len(b.Outstanding)
}

// Category normalizes root according to the category's kind.
func Category(c model.Category, root *xmltree.Element) Batch {
	switch c.Kind {
	case model.KindMaster:
		return Batch{Masters: Masters(root)}
	case model.KindOutstanding:
		return Batch{Outstanding: Outstanding(root)}
	default:
		return Batch{Vouchers: Vouchers(root)}
	}
}

// ParseAmount strips everything outside [0-9.-] and parses the rest.
// Anything unparseable is zero.
func ParseAmount(s string) decimal.Decimal {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if clean == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Signed applies the ISDEEMEDPOSITIVE convention: a "yes" flag on a
// positive amount renders it negative.
func Signed(amount decimal.Decimal, deemedPositive string) decimal.Decimal {
	if strings.EqualFold(strings.TrimSpace(deemedPositive), "yes") && amount.IsPositive() {
		return amount.Neg()
	}
	return amount
}

// Vouchers normalizes every <VOUCHER> block under root.
func Vouchers(root *xmltree.Element) []model.VoucherRecord {
	var out []model.VoucherRecord
	for _, b := range xmltree.Blocks(root, "VOUCHER") {
		if v, ok := Voucher(b); ok {
			out = append(out, v)
		}
	}
	return out
}

// Voucher maps one <VOUCHER> block. ok is false when the block carries no
// data or only an echoed header label.
func Voucher(el *xmltree.Element) (model.VoucherRecord, bool) {
	f := resolve(el, voucherFields)
	v := model.VoucherRecord{
		VoucherType:   f["VoucherType"],
		VoucherNumber: f["VoucherNumber"],
		Date:          f["Date"],
		Party:         f["Party"],
		Salesman:      f["Salesman"],
		State:         f["State"],
		Amount:        Signed(ParseAmount(f["Amount"]), xmltree.Field(el, "ISDEEMEDPOSITIVE")),
		Narration:     f["Narration"],
		Ledgers:       LedgerEntries(el),
		Items:         Items(el),
	}

	texts := []string{v.VoucherType, v.VoucherNumber, v.Date, v.Party, v.Salesman, v.State, v.Narration}
	if !retain(texts, v.Amount) && len(v.Ledgers) == 0 && len(v.Items) == 0 {
		return v, false
	}
	return v, true
}

// LedgerEntries maps the ledger lines nested in a voucher.
func LedgerEntries(el *xmltree.Element) []model.LedgerEntry {
	var out []model.LedgerEntry
	for _, b := range blocksOf(el, ledgerBlocks) {
		f := resolve(b, ledgerFields)
		e := model.LedgerEntry{
			LedgerName: f["LedgerName"],
			Amount:     Signed(ParseAmount(f["Amount"]), xmltree.Field(b, "ISDEEMEDPOSITIVE")),
			Narration:  f["Narration"],
		}
		if e.LedgerName == "" && e.Amount.IsZero() {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Items maps the inventory lines nested in a voucher. Without inventory
// blocks, parallel STOCKITEMNAME/RATE/BILLEDQTY lists are zipped by index.
func Items(el *xmltree.Element) []model.ItemRow {
	blocks := blocksOf(el, itemBlocks)
	if len(blocks) == 0 {
		return positionalItems(el)
	}

	var out []model.ItemRow
	for _, b := range blocks {
		f := resolve(b, itemFields)
		it := model.ItemRow{
			StockItemName: f["StockItemName"],
			ItemGroup:     f["ItemGroup"],
			ItemCategory:  f["ItemCategory"],
			Qty:           ParseAmount(f["Qty"]),
			Rate:          ParseAmount(f["Rate"]),
			Amount:        Signed(ParseAmount(f["Amount"]), xmltree.Field(b, "ISDEEMEDPOSITIVE")),
			UOM:           f["UOM"],
		}
		if it.UOM == "" {
			it.UOM = unitOf(f["Qty"])
		}
		if it.StockItemName == "" && it.Qty.IsZero() && it.Amount.IsZero() {
			continue
		}
		out = append(out, it)
	}
	return out
}

func positionalItems(el *xmltree.Element) []model.ItemRow {
	names := xmltree.Values(el, "STOCKITEMNAME")
	rates := xmltree.Values(el, "RATE")
	qtys := xmltree.Values(el, "BILLEDQTY")

	var out []model.ItemRow
	for i, name := range names {
		if name == "" {
			continue
		}
		it := model.ItemRow{StockItemName: name}
		if i < len(rates) {
			it.Rate = ParseAmount(rates[i])
		}
		if i < len(qtys) {
			it.Qty = ParseAmount(qtys[i])
			it.UOM = unitOf(qtys[i])
		}
		it.Amount = it.Rate.Mul(it.Qty)
		out = append(out, it)
	}
	return out
}

// unitOf returns the unit suffix of a Tally quantity such as "2 Nos".
func unitOf(qty string) string {
	parts := strings.Fields(qty)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// Masters maps master blocks (see masterKinds), tagging each record with its
// Type. Without any master block, every NAME is paired with the AMOUNT at the
// same position.
func Masters(root *xmltree.Element) []model.MasterRecord {
	var out []model.MasterRecord
	found := false
	for _, kind := range masterKinds {
		for _, b := range xmltree.Blocks(root, kind.tag) {
			found = true
			f := resolve(b, masterFields)
			m := model.MasterRecord{
				Type:           kind.typ,
				Name:           f["Name"],
				Parent:         f["Parent"],
				OpeningBalance: amountText(f["OpeningBalance"]),
				ClosingBalance: amountText(f["ClosingBalance"]),
				Email:          f["Email"],
			}
			if !retain([]string{m.Name, m.Parent, m.Email}, ParseAmount(m.OpeningBalance), ParseAmount(m.ClosingBalance)) {
				continue
			}
			out = append(out, m)
		}
	}
	if found {
		return out
	}

	for _, p := range pairNameAmount(root) {
		m := model.MasterRecord{Name: p[0], ClosingBalance: amountText(p[1])}
		if retain([]string{m.Name}, ParseAmount(m.ClosingBalance)) {
			out = append(out, m)
		}
	}
	return out
}

// HasMasters reports whether root carries any master block.
func HasMasters(root *xmltree.Element) bool {
	for _, kind := range masterKinds {
		if len(xmltree.Blocks(root, kind.tag)) > 0 {
			return true
		}
	}
	return false
}

// Outstanding maps outstanding balances. Block shapes are tried in order;
// flat BILLPARTY/BILLCL exports and finally NAME/AMOUNT pairs are used when
// no block shape is present.
func Outstanding(root *xmltree.Element) []model.OutstandingRecord {
	var blocks []*xmltree.Element
	for _, n := range outstandingBlocks {
		if blocks = xmltree.Blocks(root, n); len(blocks) > 0 {
			break
		}
	}

	var out []model.OutstandingRecord
	add := func(r model.OutstandingRecord) {
		if retain([]string{r.Party, r.Days, r.Contact}, ParseAmount(r.ClosingBalance)) {
			out = append(out, r)
		}
	}

	if len(blocks) > 0 {
		for _, b := range blocks {
			f := resolve(b, outstandingFields)
			add(model.OutstandingRecord{
				Party:          f["Party"],
				ClosingBalance: amountText(f["ClosingBalance"]),
				Days:           f["Days"],
				Contact:        f["Contact"],
			})
		}
		return out
	}

	if parties := xmltree.Values(root, "BILLPARTY"); len(parties) > 0 {
		balances := xmltree.Values(root, "BILLCL")
		overdue := xmltree.Values(root, "BILLOVERDUE")
		for i, p := range parties {
			r := model.OutstandingRecord{Party: p}
			if i < len(balances) {
				r.ClosingBalance = amountText(balances[i])
			}
			if i < len(overdue) {
				r.Days = overdue[i]
			}
			add(r)
		}
		return out
	}

	for _, p := range pairNameAmount(root) {
		add(model.OutstandingRecord{Party: p[0], ClosingBalance: amountText(p[1])})
	}
	return out
}

func pairNameAmount(root *xmltree.Element) [][2]string {
	names := xmltree.Values(root, "NAME")
	amounts := xmltree.Values(root, "AMOUNT")
	out := make([][2]string, 0, len(names))
	for i, n := range names {
		var a string
		if i < len(amounts) {
			a = amounts[i]
		}
		out = append(out, [2]string{n, a})
	}
	return out
}

// amountText normalizes a numeric field for display, keeping empty as empty.
func amountText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return ParseAmount(s).String()
}

var (
	voucherTypeLabel = regexp.MustCompile(`(?i)voucher ?type`)
	dateLabel        = regexp.MustCompile(`(?i)date`)
)

// retain reports whether a record carries real data: at least one non-empty
// text or non-zero amount, and not just a single echoed header label.
func retain(texts []string, amounts ...decimal.Decimal) bool {
	var nonEmpty []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	for _, a := range amounts {
		if !a.IsZero() {
			return true
		}
	}
	switch len(nonEmpty) {
	case 0:
		return false
	case 1:
		return !looksLikeHeader(nonEmpty[0])
	}
	return true
}

func looksLikeHeader(s string) bool {
	return (voucherTypeLabel.MatchString(s) && len(s) < 30) ||
		(dateLabel.MatchString(s) && len(s) < 6)
}
