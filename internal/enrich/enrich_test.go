package enrich_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authindex/internal/authority"
	"authindex/internal/enrich"
	"authindex/internal/identity"
	"authindex/internal/marc"
	"authindex/internal/services"
	"authindex/internal/testsupport"
	"authindex/internal/upstream"
)

func seedIndex(t *testing.T) *identity.Index {
	t.Helper()
	ix := testsupport.OpenIndex(t)
	ctx := context.Background()
	require.NoError(t, ix.Put(ctx, &authority.Entry{
		NativeID: "a0000001234567", AltID: "9810000000005606", ViafURI: "http://viaf.org/viaf/1",
		Heading: "Kowalski, Jan", HeadingTag: "100",
	}))
	require.NoError(t, ix.Put(ctx, &authority.Entry{
		NativeID: "a0000007654321", AltID: "9810000000001111", Heading: "Kraków (woj. małopolskie)", HeadingTag: "151",
		Coords: "19.790000,20.220000,50.130000,49.970000",
	}))
	_, err := ix.ReplaceExternalIDs(ctx, map[string]map[string]string{
		(&authority.Entry{NativeID: "a0000007654321"}).TranslatedID(): {
			"wikidata_uri": "http://www.wikidata.org/entity/Q31487",
			"geonames_uri": "http://sws.geonames.org/3094802",
		},
	})
	require.NoError(t, err)
	return ix
}

func bibs() []*marc.Record {
	return []*marc.Record{
		testsupport.BibRecord("b1",
			testsupport.DataField("100", "a", "Kowalski, Jan.", "e", "Autor"),
			testsupport.DataField("245", "a", "Tytuł"),
		),
		testsupport.BibRecord("b2",
			testsupport.DataField("651", "a", "Kraków (woj. małopolskie)"),
			testsupport.DataField("650", "a", "Nieznany temat"),
		),
		testsupport.BibRecord("b3",
			testsupport.DataField("700", "a", "Kowalski, Jan"),
		),
	}
}

func newResolver(t *testing.T, store enrich.Store, fetcher enrich.Fetcher) *enrich.Resolver {
	cfg := testsupport.NewConfig(t)
	return enrich.New(cfg, store, fetcher, nil)
}

func values(subs []marc.Subfield) []string {
	out := make([]string, len(subs))
	for i, s := range subs {
		out[i] = s.Value
	}
	return out
}

func TestExtractMergesTermsInRecordOrder(t *testing.T) {
	r := newResolver(t, seedIndex(t), nil)
	occ, err := r.Extract(context.Background(), bibs())
	require.NoError(t, err)

	assert.Equal(t, []string{"KOWALSKI JAN", "KRAKÓW WOJ MAŁOPOLSKIE", "NIEZNANY TEMAT"}, occ.Terms)
	assert.Equal(t, []enrich.Occurrence{{Record: 0, Field: 1}, {Record: 2, Field: 1}}, occ.ByTerm["KOWALSKI JAN"])
}

func TestResolveBatchNativeMode(t *testing.T) {
	r := newResolver(t, seedIndex(t), nil)
	records := bibs()
	res, err := r.ResolveBatch(context.Background(), records, enrich.ModeNative)
	require.NoError(t, err)

	assert.False(t, res.Partial)
	assert.Equal(t, 3, res.Terms)
	assert.Equal(t, 2, res.Resolved)
	assert.Equal(t, []string{"(native_id)a0000001234567"}, values(res.Plan[0][1]))
	assert.Equal(t, []string{"(native_id)a0000001234567"}, values(res.Plan[2][1]))
	assert.Equal(t, []string{"(native_id)a0000007654321"}, values(res.Plan[1][1]))
	assert.Empty(t, res.Plan[1][2])
	assert.Equal(t, 3, res.Injected())

	// source records are untouched
	assert.Len(t, records[0].Fields[1].Subfields, 2)
}

func TestResolveBatchAllModeIncludesExternalIDsSorted(t *testing.T) {
	r := newResolver(t, seedIndex(t), nil)
	res, err := r.ResolveBatch(context.Background(), bibs(), enrich.ModeAll)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"(native_id)a0000007654321",
		"(alt_id)9810000000001111",
		"(coords)19.790000,20.220000,50.130000,49.970000",
		"(geonames_uri)http://sws.geonames.org/3094802",
		"(wikidata_uri)http://www.wikidata.org/entity/Q31487",
	}, values(res.Plan[1][1]))
	assert.Equal(t, []string{
		"(native_id)a0000001234567",
		"(alt_id)9810000000005606",
		"(viaf_uri)http://viaf.org/viaf/1",
	}, values(res.Plan[0][1]))
}

type failingStore struct {
	enrich.Store
	headingsErr error
	externalErr error
}

func (f failingStore) ByHeadings(ctx context.Context, terms []string) ([]*authority.Entry, error) {
	if f.headingsErr != nil {
		return nil, f.headingsErr
	}
	return f.Store.ByHeadings(ctx, terms)
}

func (f failingStore) ExternalIDs(ctx context.Context, ids []string) ([]map[string]string, error) {
	if f.externalErr != nil {
		return nil, f.externalErr
	}
	return f.Store.ExternalIDs(ctx, ids)
}

func TestResolveBatchStoreFailureIsPartialPassThrough(t *testing.T) {
	store := failingStore{Store: seedIndex(t), headingsErr: errors.New("store down")}
	r := newResolver(t, store, nil)
	res, err := r.ResolveBatch(context.Background(), bibs(), enrich.ModeNative)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Zero(t, res.Injected())
	assert.Len(t, res.Records, 3)
}

func TestResolveBatchExternalFailureKeepsInternalIDs(t *testing.T) {
	store := failingStore{Store: seedIndex(t), externalErr: errors.New("extid down")}
	r := newResolver(t, store, nil)
	res, err := r.ResolveBatch(context.Background(), bibs(), enrich.ModeAll)
	require.NoError(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, []string{
		"(native_id)a0000007654321",
		"(alt_id)9810000000001111",
		"(coords)19.790000,20.220000,50.130000,49.970000",
	}, values(res.Plan[1][1]))
}

func TestResolveBatchPreservesOrderForLargeBatch(t *testing.T) {
	r := newResolver(t, seedIndex(t), nil)
	var records []*marc.Record
	for i := 0; i < 50; i++ {
		heading := "Kowalski, Jan"
		if i%2 == 1 {
			heading = "Kraków (woj. małopolskie)"
		}
		records = append(records, testsupport.BibRecord("b", testsupport.DataField("600", "a", heading)))
	}
	res, err := r.ResolveBatch(context.Background(), records, enrich.ModeNative)
	require.NoError(t, err)
	require.Len(t, res.Records, 50)
	for i := range records {
		assert.Same(t, records[i], res.Records[i])
		want := "(native_id)a0000001234567"
		if i%2 == 1 {
			want = "(native_id)a0000007654321"
		}
		assert.Equal(t, []string{want}, values(res.Plan[i][1]), "record %d", i)
	}
}

func TestParseModeRejectsUnknown(t *testing.T) {
	_, err := enrich.ParseMode("mms")
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))

	mode, err := enrich.ParseMode(" ALL ")
	require.NoError(t, err)
	assert.Equal(t, enrich.ModeAll, mode)
}

func TestLookupEntriesAlignsWithInput(t *testing.T) {
	r := newResolver(t, seedIndex(t), nil)
	got, err := r.LookupEntries(context.Background(), []string{"a0000007654321", "missing", "a0000001234567"})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a0000007654321", got[0].NativeID)
	assert.Nil(t, got[1])
	assert.Equal(t, "a0000001234567", got[2].NativeID)
}

func TestEnrichPageRewritesContinuation(t *testing.T) {
	server := testsupport.NewUpstreamServer(t)
	records := bibs()
	server.AddUpdatePage(upstream.ResourceBibs, records[0], records[1])
	server.AddUpdatePage(upstream.ResourceBibs, records[2])

	cfg := testsupport.NewConfig(t, testsupport.WithUpstream(server.URL))
	client := upstream.New(upstream.ConfigFrom(cfg))
	r := enrich.New(cfg, seedIndex(t), client, nil)

	page, err := r.EnrichPage(context.Background(), "limit=2", enrich.ModeNative)
	require.NoError(t, err)
	assert.Equal(t, "http://authindex.test/api/native/bibs?limit=2&page=1", page.Next)
	assert.Contains(t, string(page.Body), "<nextPage>http://authindex.test/api/native/bibs?limit=2&amp;page=1</nextPage>")

	parsed, err := marc.ReadPage(bytes.NewReader(page.Body))
	require.NoError(t, err)
	assert.Equal(t, page.Next, parsed.Next)
	require.Len(t, parsed.Records, 2)
	f, ok := parsed.Records[0].First("100")
	require.True(t, ok)
	id, ok := f.Subfield("0")
	require.True(t, ok)
	assert.Equal(t, "(native_id)a0000001234567", id)

	last, err := r.EnrichPage(context.Background(), strings.TrimPrefix(page.Next, "http://authindex.test/api/native/bibs?"), enrich.ModeNative)
	require.NoError(t, err)
	assert.Empty(t, last.Next)
	assert.Equal(t, 1, last.Result.Resolved)
}

func TestEnrichPageUpstreamFailure(t *testing.T) {
	server := testsupport.NewUpstreamServer(t)
	server.FailPath("/bibs.marcxml", 500)
	cfg := testsupport.NewConfig(t, testsupport.WithUpstream(server.URL))
	client := upstream.New(upstream.ConfigFrom(cfg))
	r := enrich.New(cfg, seedIndex(t), client, nil)

	_, err := r.EnrichPage(context.Background(), "limit=2", enrich.ModeAlt)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrUpstreamUnavailable))
}

func TestEnrichPageCarriesForOmnisForward(t *testing.T) {
	server := testsupport.NewUpstreamServer(t)
	records := bibs()
	server.AddUpdatePage(upstream.ResourceBibs, records[0])
	server.AddUpdatePage(upstream.ResourceBibs, records[2])

	cfg := testsupport.NewConfig(t, testsupport.WithUpstream(server.URL))
	r := enrich.New(cfg, seedIndex(t), upstream.New(upstream.ConfigFrom(cfg)), nil)

	page, err := r.EnrichPage(context.Background(), "for_omnis=true&limit=2", enrich.ModeAll)
	require.NoError(t, err)
	assert.True(t, page.ForOmnis)
	assert.Equal(t, "http://authindex.test/api/all/bibs?for_omnis=true&limit=2&page=1", page.Next)

	requests := server.Requests()
	require.Len(t, requests, 1)
	assert.Equal(t, "/bibs.marcxml?limit=2", requests[0])

	off, err := r.EnrichPage(context.Background(), "limit=2&for_omnis=false", enrich.ModeAll)
	require.NoError(t, err)
	assert.False(t, off.ForOmnis)
	assert.Equal(t, "http://authindex.test/api/all/bibs?limit=2&page=1", off.Next)
}

func TestDescribeGroupsSubjectsByRole(t *testing.T) {
	r := newResolver(t, seedIndex(t), nil)
	rec := testsupport.BibRecord("b1",
		testsupport.DataField("100", "a", "Kowalski, Jan."),
		testsupport.DataField("651", "a", "Kraków (woj. małopolskie)"),
		testsupport.DataField("650", "a", "Nieznany temat"),
		testsupport.DataField("700", "a", "Kowalski, Jan"),
	)

	data, err := r.Describe(context.Background(), rec)
	require.NoError(t, err)
	assert.False(t, data.Partial)
	require.Len(t, data.Descriptors, 2)
	assert.Equal(t, 2, data.Subjects())

	creators := data.Descriptors[0]
	assert.Equal(t, "Twórca/współtwórca", creators.Name)
	require.Len(t, creators.Subjects, 1)
	assert.Equal(t, "Kowalski, Jan", creators.Subjects[0].Name)
	assert.Equal(t, []enrich.LinkedIdentifier{
		{Type: enrich.LabelNativeID, Display: "a0000001234567", Link: enrich.DefaultDescriptorLinkBase + "a0000001234567"},
		{Type: enrich.LabelViaf, Display: "http://viaf.org/viaf/1", Link: "http://viaf.org/viaf/1"},
	}, creators.Subjects[0].Identifiers)

	places := data.Descriptors[1]
	assert.Equal(t, "Temat: miejsce", places.Name)
	require.Len(t, places.Subjects, 1)
	assert.Equal(t, []enrich.LinkedIdentifier{
		{Type: enrich.LabelNativeID, Display: "a0000007654321", Link: enrich.DefaultDescriptorLinkBase + "a0000007654321"},
		{Type: enrich.LabelWikidata, Display: "http://www.wikidata.org/entity/Q31487", Link: "http://www.wikidata.org/entity/Q31487"},
		{Type: enrich.LabelCoords, Display: "długość: 19.790000, szerokość: 20.220000", Link: "http://www.openstreetmap.org/?mlat=20.220000&mlon=19.790000&zoom=6"},
		{Type: enrich.LabelGeonames, Display: "http://sws.geonames.org/3094802", Link: "http://sws.geonames.org/3094802"},
	}, places.Subjects[0].Identifiers)
}

func TestDescribeWithoutResolvedTermsIsEmpty(t *testing.T) {
	r := newResolver(t, seedIndex(t), nil)
	data, err := r.Describe(context.Background(), testsupport.BibRecord("b9", testsupport.DataField("650", "a", "Nieznany temat")))
	require.NoError(t, err)
	assert.Empty(t, data.Descriptors)
	assert.Zero(t, data.Subjects())
}
