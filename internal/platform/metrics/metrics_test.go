package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	m.ObserveEncrypt("ok")
	m.ObserveDecrypt("authorization_denied")
	m.SessionEvent("requested")
	m.ObserveKeyServerRequest("ks-1", "ok", time.Second)
}

func TestCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEncrypt("ok")
	m.ObserveEncrypt("ok")
	m.ObserveDecrypt("session_expired")
	m.SessionEvent("signed")
	m.ObserveKeyServerRequest("ks-1", "ok", 10*time.Millisecond)

	if got := testutil.ToFloat64(m.encryptTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("encrypt counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.decryptTotal.WithLabelValues("session_expired")); got != 1 {
		t.Fatalf("decrypt counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.sessionEvents.WithLabelValues("signed")); got != 1 {
		t.Fatalf("session counter = %v, want 1", got)
	}
}
