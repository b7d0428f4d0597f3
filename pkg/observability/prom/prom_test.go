package prom

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMetricsHandler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	ctx := context.Background()

	m.OnResolveComplete(ctx, "app/1.0", 4, 20*time.Millisecond, nil)
	m.OnRangeResolved(ctx, "zlib", "local", nil)
	m.OnBinaryStatus(ctx, "zlib/1.0", "Cache")
	m.OnStoreOp(ctx, "badger", "put", time.Millisecond, errors.New("boom"))
	m.OnCacheHit(ctx, "versions")
	m.OnResponse(ctx, "GET", "localhost", "/v1/recipes/{name}", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`stackforge_resolve_duration_seconds_count{status="ok"} 1`,
		`stackforge_resolve_ranges_total{source="local",status="ok"} 1`,
		`stackforge_binaries_status_total{status="Cache"} 1`,
		`stackforge_store_op_duration_seconds_count{backend="badger",op="put",status="error"} 1`,
		`stackforge_cache_events_total{event="hit",key_type="versions"} 1`,
		`stackforge_http_requests_total{code="200",method="GET",path="/v1/recipes/{name}"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
