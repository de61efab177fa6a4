package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordersUpdateCollectors(t *testing.T) {
	before := testutil.ToFloat64(duplicates.WithLabelValues("intrafield", "replaced"))
	RecordDuplicate("intrafield", true)
	if got := testutil.ToFloat64(duplicates.WithLabelValues("intrafield", "replaced")); got != before+1 {
		t.Fatalf("duplicates counter = %v, want %v", got, before+1)
	}

	RecordSyncStarted("authority")
	if got := testutil.ToFloat64(syncInProgress.WithLabelValues("authority")); got != 1 {
		t.Fatalf("in progress gauge = %v", got)
	}
	RecordSyncFinished("authority", "completed", 1.5)
	if got := testutil.ToFloat64(syncInProgress.WithLabelValues("authority")); got != 0 {
		t.Fatalf("in progress gauge after finish = %v", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordUpstreamRequest("health", "2xx")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "authindex_upstream_requests_total") {
		t.Fatalf("metrics output missing upstream counter")
	}
}
