package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	SetServerBuildInfo("1.0.0", "abc", "2024-01-01")
	RecordFrame("status", 18, true)
	RecordFrame("body", 5, true)
	RecordFrame("body", 5, false)
	RecordFile(100, true)
	RecordFile(0, false)
	ConnOpened()
	ConnOpened()
	ConnClosed()

	if v := testutil.ToFloat64(framesTotal.WithLabelValues("status", "ok")); v != 1 {
		t.Fatalf("status frames: %v", v)
	}
	if v := testutil.ToFloat64(framesTotal.WithLabelValues("body", "failed")); v != 1 {
		t.Fatalf("failed body frames: %v", v)
	}
	if v := testutil.ToFloat64(frameBytes); v != 23 {
		t.Fatalf("frame bytes: %v", v)
	}
	if v := testutil.ToFloat64(filesTotal.WithLabelValues("ok")); v != 1 {
		t.Fatalf("files ok: %v", v)
	}
	if v := testutil.ToFloat64(fileBytes); v != 100 {
		t.Fatalf("file bytes: %v", v)
	}
	if v := testutil.ToFloat64(connsActive); v != 1 {
		t.Fatalf("active conns: %v", v)
	}
	if v := testutil.ToFloat64(connsTotal); v != 2 {
		t.Fatalf("total conns: %v", v)
	}
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("2024-01-01", "abc", "1.0.0")); v != 1 {
		t.Fatalf("build info: %v", v)
	}
}
