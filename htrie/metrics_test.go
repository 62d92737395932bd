package htrie

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// bumpCASRetry is called from every lost-CAS branch in insert.go/burst.go/
// remove.go; this confirms the counter it feeds is actually wired rather
// than a registered-but-dead series.
func TestBumpCASRetryIncrementsRegisteredCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := mustOpen(t, WithRootBits(8))
	s.WithMetrics(reg)

	s.bumpCASRetry()
	s.bumpCASRetry()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var got float64
	var found bool
	for _, fam := range families {
		if fam.GetName() != "htrie_cas_retries_total" {
			continue
		}
		found = true
		for _, m := range fam.GetMetric() {
			got += m.GetCounter().GetValue()
		}
	}
	if !found {
		t.Fatalf("htrie_cas_retries_total not found in registry")
	}
	if got != 2 {
		t.Fatalf("want cas_retries=2, got %v", got)
	}
}
