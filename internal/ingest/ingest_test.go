package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rcliao/tally-replica/internal/aggregate"
	"github.com/rcliao/tally-replica/internal/codec"
	"github.com/rcliao/tally-replica/internal/model"
	"github.com/rcliao/tally-replica/internal/store"
)

const salesXML = `<ENVELOPE><VOUCHER><VOUCHERTYPENAME>Sales</VOUCHERTYPENAME><DATE>20240101</DATE><PARTYNAME>Acme</PARTYNAME><AMOUNT>1000</AMOUNT><ISDEEMEDPOSITIVE>Yes</ISDEEMEDPOSITIVE></VOUCHER></ENVELOPE>`

func newTestService(t *testing.T, chunkSize int) (*Service, *store.MemoryKV) {
	t.Helper()
	kv := store.NewMemoryKV(0)
	ls := store.NewLargeStore(kv, store.LargeOptions{Prefix: "tally:", LegacyKey: store.DefaultLegacyKey, ChunkSize: chunkSize})
	svc, err := New(ls, Options{Mode: aggregate.ModeHeader})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, kv
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func fetchDoc(t *testing.T, svc *Service) *model.Document {
	t.Helper()
	doc, err := svc.Latest(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	return doc
}

func TestPush_PlainAndCompressedFields(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 64)

	packed, err := codec.Deflate(`<ENVELOPE><VOUCHER><VOUCHERTYPENAME>Purchase</VOUCHERTYPENAME><PARTYNAME>Supplier</PARTYNAME><AMOUNT>250</AMOUNT></VOUCHER></ENVELOPE>`)
	if err != nil {
		t.Fatalf("deflate: %v", err)
	}
	body := mustJSON(t, map[string]any{
		"source":      "pusher-1",
		"time":        "2024-01-02T03:04:05Z",
		"salesXml":    salesXML,
		"purchaseXml": packed,
		"unknown":     42,
	})

	res, err := svc.Push(ctx, body)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if !res.Success || res.Counts["sales"] != 1 || res.Counts["purchase"] != 1 {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.PushID == "" || res.Generation == "" || res.Parts < 2 {
		t.Errorf("expected push id, generation and several parts: %+v", res)
	}

	doc := fetchDoc(t, svc)
	if doc.Source != "pusher-1" || doc.Time != "2024-01-02T03:04:05Z" {
		t.Errorf("unexpected envelope: %s %s", doc.Source, doc.Time)
	}
	sales := doc.Rows["sales"]
	if len(sales) != 2 {
		t.Fatalf("expected header + 1 sales row, got %d", len(sales))
	}
	row := sales[1]
	if row["Date"] != "20240101" || row["Party"] != "Acme" || row["Amount"] != "-1000" {
		t.Errorf("unexpected sales row: %v", row)
	}
	if doc.Rows["purchase"][1]["Amount"] != "250" {
		t.Errorf("unexpected purchase row: %v", doc.Rows["purchase"])
	}
}

func TestPush_AllEmpty(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)

	// A prior push with data must not leak into the empty one.
	if _, err := svc.Push(ctx, mustJSON(t, map[string]any{"salesXml": salesXML})); err != nil {
		t.Fatalf("first push: %v", err)
	}

	res, err := svc.Push(ctx, []byte(`{"salesXml":"","purchaseXml":null}`))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	for _, c := range model.Categories {
		n, ok := res.Counts[c.Name]
		if !ok || n != 0 {
			t.Errorf("expected counts[%s]=0, got %d (present=%v)", c.Name, n, ok)
		}
	}

	doc := fetchDoc(t, svc)
	for _, c := range model.Categories {
		if rows := doc.Rows[c.Name]; len(rows) != 0 {
			t.Errorf("expected empty bucket %s, got %v", c.Name, rows)
		}
	}
	if len(doc.FlatRows) != 0 {
		t.Errorf("expected no flat rows, got %d", len(doc.FlatRows))
	}
	if doc.Source != DefaultSource || doc.Time == "" {
		t.Errorf("expected default source and a time, got %q %q", doc.Source, doc.Time)
	}
}

func TestPush_Idempotent(t *testing.T) {
	ctx := context.Background()
	svc, kv := newTestService(t, 32)
	body := mustJSON(t, map[string]any{"salesXml": salesXML, "time": "fixed"})

	first, err := svc.Push(ctx, body)
	if err != nil {
		t.Fatalf("first push: %v", err)
	}
	second, err := svc.Push(ctx, body)
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	for k, v := range first.Counts {
		if second.Counts[k] != v {
			t.Errorf("counts differ for %s: %d vs %d", k, v, second.Counts[k])
		}
	}

	keys, _ := kv.List(ctx, "tally:"+DefaultObjectName+":chunk:")
	if len(keys) != second.Parts {
		t.Fatalf("expected %d chunk keys, got %d", second.Parts, len(keys))
	}
	for _, k := range keys {
		if !strings.Contains(k, second.Generation) {
			t.Errorf("chunk from first push left behind: %s", k)
		}
	}
}

func TestPush_BadFieldIsNotFatal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)

	res, err := svc.Push(ctx, mustJSON(t, map[string]any{
		"salesXml":   salesXML,
		"receiptXml": "%%% not base64 %%%",
		"journalXml": "H4sIAAAAAAAA/wrJyCxWAAQAAP//",
	}))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Counts["sales"] != 1 || res.Counts["receipt"] != 0 || res.Counts["journal"] != 0 {
		t.Errorf("unexpected counts: %v", res.Counts)
	}
}

func TestPush_TruncatedXMLKeepsParsedPart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)

	truncated := `<ENVELOPE><VOUCHER><PARTYNAME>Acme</PARTYNAME><AMOUNT>10</AMOUNT></VOUCHER><VOUCHER><PARTYNAME>Be`
	res, err := svc.Push(ctx, mustJSON(t, map[string]any{"paymentXml": truncated}))
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Counts["payment"] < 1 {
		t.Errorf("expected the complete voucher kept, got %v", res.Counts)
	}
}

func TestPush_InvalidInput(t *testing.T) {
	svc, _ := newTestService(t, 0)
	for name, body := range map[string]string{
		"not json":      `<ENVELOPE/>`,
		"array":         `[1,2]`,
		"number field":  `{"salesXml": 12}`,
		"object source": `{"source": {"a": 1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Push(context.Background(), []byte(body))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestPushXML_Classifies(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)

	xml := `<ENVELOPE><BODY><DATA>
	<TALLYMESSAGE><VOUCHER VCHTYPE="Sales"><VOUCHERTYPENAME>Sales GST</VOUCHERTYPENAME><PARTYNAME>Acme</PARTYNAME><AMOUNT>100</AMOUNT></VOUCHER></TALLYMESSAGE>
	<TALLYMESSAGE><VOUCHER><VOUCHERTYPENAME>Credit Note</VOUCHERTYPENAME><PARTYNAME>Acme</PARTYNAME><AMOUNT>-20</AMOUNT></VOUCHER></TALLYMESSAGE>
	<TALLYMESSAGE><VOUCHER><VOUCHERTYPENAME>Contra</VOUCHERTYPENAME><AMOUNT>5</AMOUNT></VOUCHER></TALLYMESSAGE>
	<TALLYMESSAGE><LEDGER NAME="Acme"><PARENT>Sundry Debtors</PARENT></LEDGER></TALLYMESSAGE>
	</DATA></BODY></ENVELOPE>`

	res, err := svc.PushXML(ctx, xml, "")
	if err != nil {
		t.Fatalf("push xml: %v", err)
	}
	if res.Counts["sales"] != 1 || res.Counts["credit"] != 1 || res.Counts["masters"] != 1 {
		t.Errorf("unexpected counts: %v", res.Counts)
	}
	if res.Counts["journal"] != 1 || res.Counts["payment"] != 0 {
		t.Errorf("expected contra voucher in journal: %v", res.Counts)
	}
	if res.Unclassified != nil {
		t.Errorf("expected nothing unclassified, got %v", res.Unclassified)
	}
}

func TestPushXML_InventoryVouchersAndMasters(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 0)

	xml := `<ENVELOPE><BODY><DATA>
	<TALLYMESSAGE><VOUCHER><VOUCHERTYPENAME>Contra</VOUCHERTYPENAME><PARTYNAME>Cash</PARTYNAME><AMOUNT>500</AMOUNT></VOUCHER></TALLYMESSAGE>
	<TALLYMESSAGE><VOUCHER><VOUCHERTYPENAME>Receipt Note</VOUCHERTYPENAME><PARTYNAME>Supplier</PARTYNAME><AMOUNT>900</AMOUNT></VOUCHER></TALLYMESSAGE>
	<TALLYMESSAGE><VOUCHER><VOUCHERTYPENAME>Sales Order</VOUCHERTYPENAME><PARTYNAME>Acme</PARTYNAME><AMOUNT>300</AMOUNT></VOUCHER></TALLYMESSAGE>
	<TALLYMESSAGE><GROUP NAME="Sundry Debtors"><PARENT>Current Assets</PARENT></GROUP></TALLYMESSAGE>
	<TALLYMESSAGE><GODOWN NAME="Main Location"/></TALLYMESSAGE>
	<TALLYMESSAGE><COMPANY NAME="Acme Traders"/></TALLYMESSAGE>
	</DATA></BODY></ENVELOPE>`

	res, err := svc.PushXML(ctx, xml, "")
	if err != nil {
		t.Fatalf("push xml: %v", err)
	}
	if res.Counts["journal"] != 1 {
		t.Errorf("expected contra in journal, got %v", res.Counts)
	}
	if res.Counts["receipt"] != 0 || res.Counts["sales"] != 0 {
		t.Errorf("inventory vouchers must not reach money categories: %v", res.Counts)
	}
	if res.Counts["masters"] != 3 {
		t.Errorf("expected group, godown and company masters, got %v", res.Counts)
	}
	if res.Unclassified["Receipt Note"] != 1 || res.Unclassified["Sales Order"] != 1 {
		t.Errorf("expected unclassified counts per type, got %v", res.Unclassified)
	}

	doc := fetchDoc(t, svc)
	types := map[string]bool{}
	for _, row := range doc.Rows["masters"] {
		types[row["Type"]] = true
	}
	for _, typ := range []string{"Group", "Godown", "Company"} {
		if !types[typ] {
			t.Errorf("expected %s row in masters, got %v", typ, doc.Rows["masters"])
		}
	}
}

func TestPushXML_MissingEnvelope(t *testing.T) {
	svc, _ := newTestService(t, 0)
	_, err := svc.PushXML(context.Background(), "<VOUCHER/>", "")
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "Invalid XML format") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestFetch_Empty(t *testing.T) {
	svc, _ := newTestService(t, 0)
	_, err := svc.Fetch(context.Background())
	if !errors.Is(err, store.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestFetch_Verbatim(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 16)

	doc := &model.Document{Status: "ok", Source: "x", Counts: map[string]int{}, Rows: map[string][]model.Row{}, FlatRows: []model.Row{}}
	if _, err := svc.Store(ctx, doc); err != nil {
		t.Fatalf("store: %v", err)
	}
	want, _ := json.Marshal(doc)
	got, err := svc.Fetch(ctx)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got != string(want) {
		t.Errorf("expected verbatim document\n got %s\nwant %s", got, want)
	}
}

func TestLatest_LegacyDocument(t *testing.T) {
	ctx := context.Background()
	svc, kv := newTestService(t, 0)
	kv.Put(ctx, store.DefaultLegacyKey, `{"status":"ok","time":"t","rows":[{"type":"VOUCHER","Party":"Acme"}]}`)
	kv.Put(ctx, "tally:"+DefaultObjectName+":meta", `{"parts":0}`)

	doc, err := svc.Latest(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(doc.FlatRows) != 1 || doc.FlatRows[0]["Party"] != "Acme" {
		t.Errorf("expected legacy rows as flat rows, got %+v", doc.FlatRows)
	}
}
