package htrie

import "testing"

func TestWalkVisitsEveryLiveRecordOnce(t *testing.T) {
	s := mustOpen(t, WithRootBits(8))
	w := mustWorker(t, s)

	want := map[uint64]int{0x1: 2, 0x11: 1, 0x22: 1}
	for key, n := range want {
		for i := 0; i < n; i++ {
			if _, err := s.Insert(w, key, []byte("v")); err != nil {
				t.Fatalf("insert %#x: %v", key, err)
			}
		}
	}

	seen := map[uint64]int{}
	total, err := s.Walk(w, func(rec Record) int {
		seen[rec.Key]++
		return 1
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if total != 4 {
		t.Fatalf("want sum 4, got %d", total)
	}
	for key, n := range want {
		if seen[key] != n {
			t.Fatalf("key %#x: want %d visits, got %d", key, n, seen[key])
		}
	}
}

func TestMaxWalkDepthMatchesSpecBound(t *testing.T) {
	s := mustOpen(t, WithRootBits(8))
	// (WORD_BITS - root_bits)/4 + 1 = (64-8)/4 + 1 = 15.
	if got := s.maxWalkDepth(); got != 15 {
		t.Fatalf("want maxWalkDepth 15, got %d", got)
	}
}
