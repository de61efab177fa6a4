package marc_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"authindex/internal/marc"
)

const pageDoc = `<?xml version="1.0" encoding="UTF-8"?>
<resp>
  <nextPage>http://upstream.test/api/authorities.marcxml?sinceId=42&amp;limit=2</nextPage>
  <collection xmlns="http://www.loc.gov/MARC21/slim">
    <record>
      <leader>00000nz  a2200000n  4500</leader>
      <controlfield tag="001">a0000001234567</controlfield>
      <controlfield tag="ABC">bogus</controlfield>
      <controlfield tag="245">not a control tag</controlfield>
      <controlfield tag="009">9912345</controlfield>
      <datafield tag="005" ind1="1" ind2="2"><subfield code="a">reserved range</subfield></datafield>
      <datafield tag="100" ind1="1" ind2="ś"><subfield code="a">Kowalski, Jan</subfield><subfield code="d">1900-1980</subfield></datafield>
      <datafield tag="024" ind2="7"><subfield code="a">http://viaf.org/viaf/1</subfield><subfield code="2">viaf</subfield></datafield>
    </record>
    <record>
      <controlfield tag="001">a0000007654321</controlfield>
      <datafield tag="151" ind1="" ind2=" "><subfield code="a">Kraków</subfield></datafield>
    </record>
  </collection>
</resp>`

func TestReadPageAppliesTolerances(t *testing.T) {
	page, err := marc.ReadPage(strings.NewReader(pageDoc))
	if err != nil {
		t.Fatalf("ReadPage returned error: %v", err)
	}
	if page.Next != "http://upstream.test/api/authorities.marcxml?sinceId=42&limit=2" {
		t.Fatalf("unexpected continuation token %q", page.Next)
	}
	if len(page.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(page.Records))
	}

	first := page.Records[0]
	var tags []string
	for _, f := range first.Fields {
		tags = append(tags, f.Tag)
	}
	if got := strings.Join(tags, ","); got != "001,009,100,024" {
		t.Fatalf("unexpected surviving tags %s", got)
	}
	if first.ControlValue("001") != "a0000001234567" {
		t.Fatalf("unexpected 001 %q", first.ControlValue("001"))
	}
	heading, ok := first.First("100")
	if !ok {
		t.Fatal("expected 100 field")
	}
	if heading.Ind1 != '1' || heading.Ind2 != ' ' {
		t.Fatalf("expected non-ascii indicator coerced to blank, got %q %q", heading.Ind1, heading.Ind2)
	}
	if heading.Text() != "Kowalski, Jan 1900-1980" {
		t.Fatalf("unexpected heading text %q", heading.Text())
	}
	viaf, _ := first.First("024")
	if viaf.Ind1 != ' ' || viaf.Ind2 != '7' {
		t.Fatalf("expected missing indicator coerced to blank, got %q %q", viaf.Ind1, viaf.Ind2)
	}

	second, _ := page.Records[1].First("151")
	if second.Ind1 != ' ' {
		t.Fatalf("expected empty indicator coerced to blank, got %q", second.Ind1)
	}
	if v, _ := second.Subfield("a"); v != "Kraków" {
		t.Fatalf("unexpected subfield value %q", v)
	}
}

func TestReadPageWithoutTokenOrNamespace(t *testing.T) {
	doc := `<collection><record><controlfield tag="001">x1</controlfield></record></collection>`
	page, err := marc.ReadPage(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadPage returned error: %v", err)
	}
	if page.Next != "" {
		t.Fatalf("expected no continuation token, got %q", page.Next)
	}
	if len(page.Records) != 1 || page.Records[0].ControlValue("001") != "x1" {
		t.Fatalf("unexpected records %+v", page.Records)
	}
}

func TestReadPageEmptyTokenEndsPagination(t *testing.T) {
	doc := `<resp><nextPage></nextPage><collection></collection></resp>`
	page, err := marc.ReadPage(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadPage returned error: %v", err)
	}
	if page.Next != "" || len(page.Records) != 0 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestXMLReaderKeepsRecordsBeforeSyntaxError(t *testing.T) {
	doc := `<collection>
<record><controlfield tag="001">good</controlfield></record>
<record><controlfield tag="001">bad</controlfield><datafield tag="100"><subfield code="a">x</subfield></record>
</collection`
	reader := marc.NewXMLReader(strings.NewReader(doc))
	var ids []string
	for {
		rec, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next returned error: %v", err)
		}
		ids = append(ids, rec.ControlValue("001"))
	}
	if len(ids) == 0 || ids[0] != "good" {
		t.Fatalf("expected the first record to survive, got %v", ids)
	}
}

func TestNewReaderSniffsFormat(t *testing.T) {
	xmlReader, err := marc.NewReader(strings.NewReader("  \n<collection/>"), marc.FormatAuto)
	if err != nil {
		t.Fatalf("NewReader returned error: %v", err)
	}
	if _, ok := xmlReader.(*marc.XMLReader); !ok {
		t.Fatalf("expected XMLReader, got %T", xmlReader)
	}
	binReader, err := marc.NewReader(bytes.NewReader([]byte("00026nz  a2200025n  4500\x1e\x1d")), marc.FormatAuto)
	if err != nil {
		t.Fatalf("NewReader returned error: %v", err)
	}
	if _, ok := binReader.(*marc.ISO2709Reader); !ok {
		t.Fatalf("expected ISO2709Reader, got %T", binReader)
	}
	if _, err := marc.NewReader(strings.NewReader(""), "json"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
