// Package model defines the categories, records and document types shared by
// the ingest pipeline and the chunked store.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind selects the record shape and column set of a category.
type Kind string

const (
	KindVoucher     Kind = "voucher"
	KindMaster      Kind = "master"
	KindOutstanding Kind = "outstanding"
)

// Category is one named data bucket.
type Category struct {
	Name string
	Kind Kind
}

// Field is the push envelope field carrying this category's XML.
func (c Category) Field() string { return c.Name + "Xml" }

// Categories lists every bucket in contract order. flatRows follows this
// order and consumers rely on it.
var Categories = []Category{
	{Name: "sales", Kind: KindVoucher},
	{Name: "purchase", Kind: KindVoucher},
	{Name: "receipt", Kind: KindVoucher},
	{Name: "payment", Kind: KindVoucher},
	{Name: "journal", Kind: KindVoucher},
	{Name: "debit", Kind: KindVoucher},
	{Name: "credit", Kind: KindVoucher},
	{Name: "masters", Kind: KindMaster},
	{Name: "outstandingReceivable", Kind: KindOutstanding},
	{Name: "outstandingPayable", Kind: KindOutstanding},
}

// LookupCategory returns the category with the given name.
func LookupCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// Column sets per kind. Header rows map each column to its own name.
var (
	VoucherColumns     = []string{"Date", "VoucherType", "VoucherNumber", "Party", "Salesman", "State", "Amount", "Narration", "Items", "Qty", "Ledgers"}
	MasterColumns      = []string{"Type", "Name", "Parent", "OpeningBalance", "ClosingBalance", "Email"}
	OutstandingColumns = []string{"Party", "ClosingBalance", "Days", "Contact"}
)

// Columns returns the column list for a kind.
func Columns(k Kind) []string {
	switch k {
	case KindMaster:
		return MasterColumns
	case KindOutstanding:
		return OutstandingColumns
	default:
		return VoucherColumns
	}
}

// Row is one tabular row keyed by column name.
type Row map[string]string

// LedgerEntry is one ALLLEDGERENTRIES.LIST line of a voucher.
type LedgerEntry struct {
	LedgerName string          `json:"ledgerName"`
	Amount     decimal.Decimal `json:"amount"`
	Narration  string          `json:"narration,omitempty"`
}

// ItemRow is one inventory line of a voucher.
type ItemRow struct {
	StockItemName string          `json:"stockItemName"`
	ItemGroup     string          `json:"itemGroup,omitempty"`
	ItemCategory  string          `json:"itemCategory,omitempty"`
	Qty           decimal.Decimal `json:"qty"`
	Rate          decimal.Decimal `json:"rate"`
	Amount        decimal.Decimal `json:"amount"`
	UOM           string          `json:"uom,omitempty"`
}

// VoucherRecord is the normalized summary of one <VOUCHER> block.
type VoucherRecord struct {
	VoucherType   string          `json:"voucherType"`
	VoucherNumber string          `json:"voucherNumber"`
	Date          string          `json:"date"`
	Party         string          `json:"party"`
	Salesman      string          `json:"salesman,omitempty"`
	State         string          `json:"state,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Narration     string          `json:"narration,omitempty"`
	Ledgers       []LedgerEntry   `json:"ledgers,omitempty"`
	Items         []ItemRow       `json:"items,omitempty"`
}

// MasterRecord is one master entry: a ledger, stock item, group, cost
// centre, unit, employee, godown or company, told apart by Type.
type MasterRecord struct {
	Type           string `json:"type"`
	Name           string `json:"name"`
	Parent         string `json:"parent,omitempty"`
	OpeningBalance string `json:"openingBalance,omitempty"`
	ClosingBalance string `json:"closingBalance,omitempty"`
	Email          string `json:"email,omitempty"`
}

// OutstandingRecord is one receivable or payable balance.
type OutstandingRecord struct {
	Party          string `json:"party"`
	ClosingBalance string `json:"closingBalance"`
	Days           string `json:"days,omitempty"`
	Contact        string `json:"contact,omitempty"`
}

// Document is the normalized unit that is persisted and fetched.
type Document struct {
	Status   string                     `json:"status"`
	Time     string                     `json:"time"`
	Source   string                     `json:"source"`
	Counts   map[string]int             `json:"counts"`
	Rows     map[string][]Row           `json:"rows"`
	FlatRows []Row                      `json:"flatRows"`
	Vouchers map[string][]VoucherRecord `json:"vouchers,omitempty"`
}

// ChunkMeta describes a stored large object. It is always read first.
type ChunkMeta struct {
	Parts      int            `json:"parts"`
	StoredAt   time.Time      `json:"storedAt"`
	Counts     map[string]int `json:"counts,omitempty"`
	Generation string         `json:"generation,omitempty"`
	Size       int            `json:"size,omitempty"`
	SHA256     string         `json:"sha256,omitempty"`
}
