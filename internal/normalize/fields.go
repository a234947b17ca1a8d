package normalize

import "github.com/rcliao/tally-replica/internal/xmltree"

// fieldSpec resolves one logical field from the first non-empty of Tags.
// Tags beginning with "@" read an attribute of the block element.
type fieldSpec struct {
	Name string
	Tags []string
}

var voucherFields = []fieldSpec{
	{"VoucherType", []string{"VOUCHERTYPENAME", "@VCHTYPE"}},
	{"VoucherNumber", []string{"VOUCHERNUMBER", "REFERENCE"}},
	{"Date", []string{"DATE", "EFFECTIVEDATE"}},
	{"Party", []string{"PARTYNAME", "PARTYLEDGERNAME", "LEDGERNAME"}},
	{"Salesman", []string{"BASICSALESNAME", "SALESMAN"}},
	{"State", []string{"PLACEOFSUPPLY", "STATENAME"}},
	{"Amount", []string{"AMOUNT"}},
	{"Narration", []string{"NARRATION"}},
}

var ledgerFields = []fieldSpec{
	{"LedgerName", []string{"LEDGERNAME"}},
	{"Amount", []string{"AMOUNT"}},
	{"Narration", []string{"NARRATION"}},
}

var itemFields = []fieldSpec{
	{"StockItemName", []string{"STOCKITEMNAME"}},
	{"ItemGroup", []string{"STOCKGROUPNAME", "PARENT"}},
	{"ItemCategory", []string{"STOCKCATEGORY", "CATEGORY"}},
	{"Qty", []string{"BILLEDQTY", "ACTUALQTY"}},
	{"Rate", []string{"RATE"}},
	{"Amount", []string{"AMOUNT"}},
	{"UOM", []string{"UOM", "BASEUNITS"}},
}

var masterFields = []fieldSpec{
	{"Name", []string{"@NAME", "NAME"}},
	{"Parent", []string{"PARENT"}},
	{"OpeningBalance", []string{"OPENINGBALANCE", "OPENINGVALUE"}},
	{"ClosingBalance", []string{"CLOSINGBALANCE", "CLOSINGVALUE"}},
	{"Email", []string{"EMAIL", "LEDGEREMAIL"}},
}

var outstandingFields = []fieldSpec{
	{"Party", []string{"PARTYNAME", "PARTYLEDGERNAME", "@NAME", "NAME", "LEDGERNAME", "BILLPARTY"}},
	{"ClosingBalance", []string{"CLOSINGBALANCE", "BILLCL", "AMOUNT"}},
	{"Days", []string{"AGE", "DAYS", "BILLOVERDUE", "OVERDUEDAYS"}},
	{"Contact", []string{"CONTACT", "LEDGERPHONE", "PHONE", "LEDGERMOBILE", "MOBILE", "EMAIL"}},
}

// Master block tags and the Type recorded for each.
var masterKinds = []struct{ tag, typ string }{
	{"LEDGER", "Ledger"},
	{"STOCKITEM", "StockItem"},
	{"GROUP", "Group"},
	{"COSTCENTRE", "CostCentre"},
	{"UNIT", "Unit"},
	{"EMPLOYEE", "Employee"},
	{"GODOWN", "Godown"},
	{"COMPANY", "Company"},
}

// Block names per record shape, tried in order.
var (
	ledgerBlocks      = []string{"ALLLEDGERENTRIES.LIST", "LEDGERENTRIES.LIST"}
	itemBlocks        = []string{"ALLINVENTORYENTRIES.LIST", "INVENTORYENTRIES.LIST"}
	outstandingBlocks = []string{"OUTSTANDINGITEMS.LIST", "BILL", "LEDGER"}
)

func resolve(el *xmltree.Element, specs []fieldSpec) map[string]string {
	out := make(map[string]string, len(specs))
	for _, s := range specs {
		out[s.Name] = xmltree.Any(el, s.Tags...)
	}
	return out
}

func blocksOf(el *xmltree.Element, names []string) []*xmltree.Element {
	var out []*xmltree.Element
	for _, n := range names {
		out = append(out, xmltree.Blocks(el, n)...)
	}
	return out
}
