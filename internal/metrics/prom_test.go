package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	Register(reg)
	SetServerBuildInfo("1.0.0", "abc", "2024-01-01")
	RecordGenerate("database", "streamed")
	RecordGenerate("", "rejected")
	RelayStart()
	RelayEnd("database", 100*time.Millisecond, 42)
	RecordUpstreamStatus("direct", 503)
	RecordExport("csv", true)
	RecordExport("pdf", false)
	RecordHealthCheck(true)

	if v := testutil.ToFloat64(generateRequests.WithLabelValues("database", "streamed")); v != 1 {
		t.Fatalf("generate requests: %v", v)
	}
	if v := testutil.ToFloat64(generateRequests.WithLabelValues("invalid", "rejected")); v != 1 {
		t.Fatalf("rejected requests: %v", v)
	}
	if v := testutil.ToFloat64(relayInflight); v != 0 {
		t.Fatalf("inflight: %v", v)
	}
	if v := testutil.ToFloat64(relayBytes.WithLabelValues("database")); v != 42 {
		t.Fatalf("relay bytes: %v", v)
	}
	if v := testutil.ToFloat64(upstreamStatus.WithLabelValues("direct", "503")); v != 1 {
		t.Fatalf("upstream status: %v", v)
	}
	if v := testutil.ToFloat64(exports.WithLabelValues("pdf", "error")); v != 1 {
		t.Fatalf("exports: %v", v)
	}
	if v := testutil.ToFloat64(healthChecks.WithLabelValues("success")); v != 1 {
		t.Fatalf("health checks: %v", v)
	}
	if v := testutil.ToFloat64(buildInfo.WithLabelValues("2024-01-01", "abc", "1.0.0")); v != 1 {
		t.Fatalf("build info: %v", v)
	}
	if n := testutil.CollectAndCount(relayDuration); n != 1 {
		t.Fatalf("duration series: %d", n)
	}
}
