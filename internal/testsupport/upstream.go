package testsupport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"authindex/internal/marc"
)

// UpstreamServer fakes the upstream cataloging API. Update pages are served
// from /{kind}.marcxml and deletion pages from /{kind}.json?deleted=true,
// where kind is "authorities" or "bibs". Pages chain through a page query
// parameter carried in the nextPage URL.
type UpstreamServer struct {
	*httptest.Server
	t testing.TB

	mu        sync.Mutex
	healthy   bool
	updates   map[string][][]*marc.Record
	deletions map[string][][]string
	failures  map[string]int
	requests  []string
}

// NewUpstreamServer starts a fake upstream and registers cleanup.
func NewUpstreamServer(t testing.TB) *UpstreamServer {
	t.Helper()
	s := &UpstreamServer{
		t:         t,
		healthy:   true,
		updates:   make(map[string][][]*marc.Record),
		deletions: make(map[string][][]string),
		failures:  make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// AddUpdatePage appends one page of updated records for kind.
func (s *UpstreamServer) AddUpdatePage(kind string, records ...*marc.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates[kind] = append(s.updates[kind], records)
}

// AddDeletionPage appends one page of deleted ids for kind.
func (s *UpstreamServer) AddDeletionPage(kind string, ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletions[kind] = append(s.deletions[kind], ids)
}

// SetHealthy toggles the health endpoint between 200 and 503.
func (s *UpstreamServer) SetHealthy(healthy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthy = healthy
}

// FailPath makes every request to path answer with status.
func (s *UpstreamServer) FailPath(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Requests returns the request URIs seen so far.
func (s *UpstreamServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// RequestCount counts requests whose path equals path.
func (s *UpstreamServer) RequestCount(path string) int {
	n := 0
	for _, uri := range s.Requests() {
		if strings.SplitN(uri, "?", 2)[0] == path {
			n++
		}
	}
	return n
}

func (s *UpstreamServer) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.RequestURI())
	status, failing := s.failures[r.URL.Path]
	healthy := s.healthy
	s.mu.Unlock()

	if failing {
		http.Error(w, "injected failure", status)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case strings.HasSuffix(name, ".marcxml"):
		s.serveUpdates(w, r, strings.TrimSuffix(name, ".marcxml"))
	case strings.HasSuffix(name, ".json"):
		kind := strings.TrimSuffix(name, ".json")
		if r.URL.Query().Get("deleted") != "true" {
			if !healthy {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, map[string]any{"nextPage": "", kind: []any{}})
			return
		}
		s.serveDeletions(w, r, kind)
	default:
		http.NotFound(w, r)
	}
}

func (s *UpstreamServer) serveUpdates(w http.ResponseWriter, r *http.Request, kind string) {
	s.mu.Lock()
	pages := s.updates[kind]
	s.mu.Unlock()

	page := pageParam(r)
	var records []*marc.Record
	if page < len(pages) {
		records = pages[page]
	}
	next := ""
	if page+1 < len(pages) {
		next = s.nextURL(r, page+1)
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(UpstreamPage(s.t, next, records...))
}

func (s *UpstreamServer) serveDeletions(w http.ResponseWriter, r *http.Request, kind string) {
	s.mu.Lock()
	pages := s.deletions[kind]
	s.mu.Unlock()

	page := pageParam(r)
	items := []map[string]any{}
	if page < len(pages) {
		for _, id := range pages[page] {
			items = append(items, map[string]any{"id": id, "deleted": true})
		}
	}
	next := ""
	if page+1 < len(pages) {
		next = s.nextURL(r, page+1)
	}
	writeJSON(w, map[string]any{"nextPage": next, kind: items})
}

func (s *UpstreamServer) nextURL(r *http.Request, page int) string {
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	return s.URL + r.URL.Path + "?" + q.Encode()
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 0 {
		return 0
	}
	return page
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
