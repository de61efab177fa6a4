package marc_test

import (
	"bytes"
	"strings"
	"testing"

	"authindex/internal/marc"
)

func TestWriteCollectionAppliesInjectionsWithoutMutation(t *testing.T) {
	rec := &marc.Record{
		Leader: "00000nam  2200000 a 4500",
		Fields: []marc.Field{
			{Tag: "001", Value: "b0000001234567"},
			{Tag: "100", Ind1: '1', Subfields: []marc.Subfield{{Code: "a", Value: "Kowalski & Syn"}}},
			{Tag: "650", Ind2: '4', Subfields: []marc.Subfield{{Code: "a", Value: "Historia"}}},
		},
	}
	plan := marc.Injections{}
	plan.Add(0, 1, marc.Subfield{Code: "0", Value: "(native_id)a0000001234567"})
	plan.Add(0, 2)

	var buf bytes.Buffer
	if err := marc.WriteCollection(&buf, []*marc.Record{rec}, plan); err != nil {
		t.Fatalf("WriteCollection returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`<collection xmlns="http://www.loc.gov/MARC21/slim">`,
		`<controlfield tag="001">b0000001234567</controlfield>`,
		`<datafield tag="100" ind1="1" ind2=" "><subfield code="a">Kowalski &amp; Syn</subfield><subfield code="0">(native_id)a0000001234567</subfield></datafield>`,
		`<datafield tag="650" ind1=" " ind2="4"><subfield code="a">Historia</subfield></datafield>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output %s", want, out)
		}
	}
	if len(rec.Fields[1].Subfields) != 1 {
		t.Fatal("source record was mutated")
	}
	if plan.Count() != 1 {
		t.Fatalf("unexpected plan count %d", plan.Count())
	}

	page, err := marc.ReadPage(strings.NewReader(out))
	if err != nil {
		t.Fatalf("re-read output: %v", err)
	}
	if len(page.Records) != 1 {
		t.Fatalf("expected one record after re-read, got %d", len(page.Records))
	}
	if v, _ := page.Records[0].Fields[1].Subfield("0"); v != "(native_id)a0000001234567" {
		t.Fatalf("injected subfield not readable, got %q", v)
	}
}

func TestEncodeRecordStandalone(t *testing.T) {
	rec := &marc.Record{Fields: []marc.Field{{Tag: "001", Value: "b1"}}}
	out := string(marc.EncodeRecord(rec))
	if !strings.HasPrefix(out, `<record xmlns="http://www.loc.gov/MARC21/slim">`) {
		t.Fatalf("unexpected encoding %s", out)
	}
	page, err := marc.ReadPage(strings.NewReader(out))
	if err != nil || len(page.Records) != 1 || page.Records[0].ControlValue("001") != "b1" {
		t.Fatalf("unexpected re-read result %+v %v", page, err)
	}
}
