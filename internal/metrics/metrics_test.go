package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if admissionsTotal == nil || fetchesTotal == nil || samplesTotal == nil ||
		sandboxSubmissionsTotal == nil || httpRequestsTotal == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveHelpers(t *testing.T) {
	ObserveAdmission("metrics-test", AdmissionAccepted)
	ObserveAdmission("metrics-test", AdmissionAccepted)
	if val := testutil.ToFloat64(admissionsTotal.WithLabelValues("metrics-test", AdmissionAccepted)); val != 2 {
		t.Errorf("expected 2 accepted admissions, got %f", val)
	}

	ObserveFetch("metrics-test-feed", FetchOK, 128, 50*time.Millisecond)
	if val := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("metrics-test-feed")); val != 128 {
		t.Errorf("expected 128 bytes, got %f", val)
	}

	ObserveFetch("", FetchError, 0, 0)
	if val := testutil.ToFloat64(fetchesTotal.WithLabelValues("unknown", FetchError)); val < 1 {
		t.Errorf("expected an unknown-source fetch error, got %f", val)
	}

	ObserveSandbox("metrics-test", SandboxFailed)
	if val := testutil.ToFloat64(sandboxSubmissionsTotal.WithLabelValues("metrics-test", SandboxFailed)); val != 1 {
		t.Errorf("expected 1 failed submission, got %f", val)
	}

	SetQueuePending(7)
	if val := testutil.ToFloat64(queuePending); val != 7 {
		t.Errorf("expected queue pending 7, got %f", val)
	}
}
