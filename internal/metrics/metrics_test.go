package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Reset collectors for testing purposes.
	scraperJobsTotal = nil
	scraperFetchesTotal = nil
	scraperFetchDurationSeconds = nil
	scraperActiveWorkers = nil
	scraperRetentionRowsTotal = nil
	httpRequestsTotal = nil
	httpRequestDurationSeconds = nil

	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if scraperJobsTotal == nil || scraperFetchesTotal == nil ||
		scraperFetchDurationSeconds == nil || scraperActiveWorkers == nil ||
		scraperRetentionRowsTotal == nil || httpRequestsTotal == nil ||
		httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveJob("completed")
	if val := testutil.ToFloat64(scraperJobsTotal); val != 1 {
		t.Errorf("expected scraperJobsTotal to be 1, got %f", val)
	}

	ObserveFetch("static", 200, 120*time.Millisecond)
	if val := testutil.ToFloat64(scraperFetchesTotal.WithLabelValues("static", "2xx")); val != 1 {
		t.Errorf("expected static/2xx fetch count to be 1, got %f", val)
	}

	ObserveRetention("results", 3)
	ObserveRetention("results", 0)
	if val := testutil.ToFloat64(scraperRetentionRowsTotal.WithLabelValues("results")); val != 3 {
		t.Errorf("expected retention rows counter to be 3, got %f", val)
	}

	IncActiveWorkers()
	IncActiveWorkers()
	DecActiveWorkers()
	if val := testutil.ToFloat64(scraperActiveWorkers); val != 1 {
		t.Errorf("expected scraperActiveWorkers to be 1, got %f", val)
	}
}

func TestStatusClass(t *testing.T) {
	testCases := []struct {
		code     int
		expected string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{0, "other"},
		{999, "other"},
	}

	for _, tc := range testCases {
		if got := statusClass(tc.code); got != tc.expected {
			t.Errorf("statusClass(%d) = %q; want %q", tc.code, got, tc.expected)
		}
	}
}
