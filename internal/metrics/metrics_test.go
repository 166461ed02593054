package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hazz-dev/cratecheck/internal/checker"
	"github.com/hazz-dev/cratecheck/internal/metrics"
)

func TestRecorder_CountsByAvailability(t *testing.T) {
	r := metrics.New()
	r.Observe(checker.Result{Name: "a", Availability: checker.Available, ResponseTime: 10 * time.Millisecond})
	r.Observe(checker.Result{Name: "b", Availability: checker.Available})
	r.Observe(checker.Result{Name: "serde", Availability: checker.Unavailable})

	if got := testutil.ToFloat64(r.Lookups(checker.Available)); got != 2 {
		t.Errorf("expected 2 Available lookups, got %v", got)
	}
	if got := testutil.ToFloat64(r.Lookups(checker.Unavailable)); got != 1 {
		t.Errorf("expected 1 Unavailable lookup, got %v", got)
	}
	if got := testutil.ToFloat64(r.Lookups(checker.Unknown)); got != 0 {
		t.Errorf("expected 0 Unknown lookups, got %v", got)
	}
}

func TestRecorder_Handler(t *testing.T) {
	r := metrics.New()
	r.Observe(checker.Result{Name: "serde", Availability: checker.Unavailable})

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `cratecheck_lookups_total{availability="Unavailable"} 1`) {
		t.Errorf("expected lookup counter in exposition, got:\n%s", body)
	}
	if !strings.Contains(string(body), "cratecheck_lookup_duration_seconds") {
		t.Errorf("expected duration histogram in exposition, got:\n%s", body)
	}
}
