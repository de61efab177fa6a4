package enrich

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"authindex/internal/marc"
	"authindex/internal/services"
)

const (
	upstreamQueryMarker = "marcxml?"
	forOmnisParam       = "for_omnis"
)

// Page is an enriched upstream page ready to serve.
type Page struct {
	Body     []byte
	Next     string
	ForOmnis bool
	Result   Result
}

// EnrichPage fetches {upstream}/bibs.marcxml?{query}, resolves the records and
// renders the response document. The continuation token is rewritten to the
// equivalent request on this service. A for_omnis parameter is not sent
// upstream; when it is "true" the rewritten token carries it forward.
func (r *Resolver) EnrichPage(ctx context.Context, query string, mode Mode) (Page, error) {
	if _, err := ParseMode(string(mode)); err != nil {
		return Page{}, err
	}
	if r.fetcher == nil {
		return Page{}, services.Wrap(services.ErrConfiguration, "enrich", "enrich page", "no upstream configured", nil)
	}
	query, forOmnis := splitForOmnis(strings.TrimPrefix(query, "?"))
	rawURL := strings.TrimRight(r.fetcher.BaseURL(), "/") + "/bibs." + upstreamQueryMarker + query
	page, err := r.fetcher.FetchPage(ctx, rawURL)
	if err != nil {
		return Page{}, fmt.Errorf("fetch bibs page: %w", err)
	}
	result, err := r.ResolveBatch(ctx, page.Records, mode)
	if err != nil {
		return Page{}, err
	}
	next := r.rewriteNext(page.Next, mode, forOmnis)

	var buf bytes.Buffer
	if err := WriteResponse(&buf, next, result); err != nil {
		return Page{}, err
	}
	return Page{Body: buf.Bytes(), Next: next, ForOmnis: forOmnis, Result: result}, nil
}

// splitForOmnis removes every for_omnis parameter from a raw query, keeping
// the other parameters in their original form and order. Only the literal
// value "true" enables the flag.
func splitForOmnis(query string) (string, bool) {
	if !strings.Contains(query, forOmnisParam) {
		return query, false
	}
	var kept []string
	enabled := false
	for _, part := range strings.Split(query, "&") {
		key, value, _ := strings.Cut(part, "=")
		if key == forOmnisParam {
			enabled = value == "true"
			continue
		}
		if part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, "&"), enabled
}

func (r *Resolver) rewriteNext(upstreamNext string, mode Mode, forOmnis bool) string {
	if upstreamNext == "" {
		return ""
	}
	query := upstreamNext
	if i := strings.Index(upstreamNext, upstreamQueryMarker); i >= 0 {
		query = upstreamNext[i+len(upstreamQueryMarker):]
	} else if i := strings.IndexByte(upstreamNext, '?'); i >= 0 {
		query = upstreamNext[i+1:]
	}
	if forOmnis {
		query = forOmnisParam + "=true&" + query
	}
	return strings.TrimRight(r.publicBase, "/") + "/api/" + string(mode) + "/bibs?" + query
}

// WriteResponse renders <resp><nextPage/><collection/></resp> applying the
// result's injection plan.
func WriteResponse(w io.Writer, next string, result Result) error {
	if _, err := io.WriteString(w, "<resp><nextPage>"); err != nil {
		return err
	}
	if err := xml.EscapeText(w, []byte(next)); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "</nextPage>"); err != nil {
		return err
	}
	if err := marc.WriteCollection(w, result.Records, result.Plan); err != nil {
		return err
	}
	_, err := io.WriteString(w, "</resp>")
	return err
}
