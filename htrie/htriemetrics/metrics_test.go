package htriemetrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewRegistersAllSeriesOncePerStore(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "store-a")

	m.Inserted.Inc()
	m.Bursts.WithLabelValues("ok").Inc()
	m.Generation.Set(42)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected at least one registered metric family")
	}

	var sawInserted bool
	for _, fam := range families {
		if fam.GetName() == "htrie_records_inserted_total" {
			sawInserted = true
			for _, metric := range fam.GetMetric() {
				if got := metric.GetCounter().GetValue(); got != 1 {
					t.Fatalf("want inserted=1, got %v", got)
				}
				if !hasLabel(metric, "store_id", "store-a") {
					t.Fatalf("expected store_id=store-a const label")
				}
			}
		}
	}
	if !sawInserted {
		t.Fatalf("htrie_records_inserted_total not found in registry")
	}
}

func TestNewWithNilRegistererDoesNotPanic(t *testing.T) {
	m := New(nil, "store-b")
	m.Removed.Inc() // must not touch an unregistered collector's internals unsafely
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
