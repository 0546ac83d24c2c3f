package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T) map[string]*dto.MetricFamily {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectorsRegistered(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "GET /healthz", "200").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "GET /healthz").Observe(0.01)
	DBQueriesTotal.WithLabelValues("query").Inc()
	DBQueryDuration.WithLabelValues("query").Observe(0.001)
	CacheHits.WithLabelValues("stations").Inc()
	CacheMisses.WithLabelValues("stations").Inc()
	DatasetEventsTotal.WithLabelValues("handled").Inc()

	families := gather(t)
	want := map[string]dto.MetricType{
		"surfsup_http_requests_total":           dto.MetricType_COUNTER,
		"surfsup_http_request_duration_seconds": dto.MetricType_HISTOGRAM,
		"surfsup_db_queries_total":              dto.MetricType_COUNTER,
		"surfsup_db_query_duration_seconds":     dto.MetricType_HISTOGRAM,
		"surfsup_db_sessions_open":              dto.MetricType_GAUGE,
		"surfsup_cache_hits_total":              dto.MetricType_COUNTER,
		"surfsup_cache_misses_total":            dto.MetricType_COUNTER,
		"surfsup_cache_flushes_total":           dto.MetricType_COUNTER,
		"surfsup_dataset_events_total":          dto.MetricType_COUNTER,
	}
	for name, typ := range want {
		f, ok := families[name]
		if !ok {
			t.Errorf("metric %s not registered", name)
			continue
		}
		if f.GetType() != typ {
			t.Errorf("metric %s type = %v; want %v", name, f.GetType(), typ)
		}
	}
}

func TestHTTPRequestsTotal_labels(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "GET /api/v1.0/{start}", "400").Inc()

	f := gather(t)["surfsup_http_requests_total"]
	if f == nil {
		t.Fatal("surfsup_http_requests_total missing")
	}
	for _, m := range f.GetMetric() {
		labels := map[string]string{}
		for _, lp := range m.GetLabel() {
			labels[lp.GetName()] = lp.GetValue()
		}
		if labels["route"] == "GET /api/v1.0/{start}" && labels["status"] == "400" {
			if m.GetCounter().GetValue() < 1 {
				t.Errorf("counter = %v; want >= 1", m.GetCounter().GetValue())
			}
			return
		}
	}
	var names []string
	for _, m := range f.GetMetric() {
		names = append(names, m.String())
	}
	t.Fatalf("labelled series not found in %s", strings.Join(names, "; "))
}
