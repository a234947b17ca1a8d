package normalize

import "strings"

// Inventory and non-posting voucher types. They never reach a money
// category, whatever their name contains.
var nonAccounting = []string{
	"order",
	"receipt note",
	"delivery note",
	"rejection",
	"stock journal",
	"physical stock",
	"material",
	"job work",
	"memorandum",
	"attendance",
	"payroll",
}

// Voucher type substrings mapped to categories, checked in order.
var voucherClasses = []struct {
	match    string
	category string
}{
	{"debit note", "debit"},
	{"credit note", "credit"},
	{"sale", "sales"},
	{"purchase", "purchase"},
	{"receipt", "receipt"},
	{"payment", "payment"},
	{"journal", "journal"},
	{"contra", "journal"},
	{"debit", "debit"},
	{"credit", "credit"},
}

// Classify maps a voucher type name such as "Sales GST" to its category.
// ok is false for blank names, inventory and order vouchers, and names
// matching no category.
func Classify(voucherType string) (category string, ok bool) {
	t := strings.ToLower(strings.TrimSpace(voucherType))
	if t == "" {
		return "", false
	}
	for _, n := range nonAccounting {
		if strings.Contains(t, n) {
			return "", false
		}
	}
	for _, c := range voucherClasses {
		if strings.Contains(t, c.match) {
			return c.category, true
		}
	}
	return "", false
}
