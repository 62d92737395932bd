package htrie

import (
	"testing"

	"golang.org/x/sync/errgroup"
)

// Several workers each insert a disjoint range of unique keys concurrently;
// every key must be found afterward.
func TestConcurrentInsertDisjointKeys(t *testing.T) {
	s := mustOpen(t, WithRootBits(8), WithMaxWorkers(16))

	const workers = 8
	const perWorker = 2000

	var g errgroup.Group
	for wk := 0; wk < workers; wk++ {
		wk := wk
		g.Go(func() error {
			w, err := s.Register()
			if err != nil {
				return err
			}
			defer s.Release(w)

			for i := 0; i < perWorker; i++ {
				key := uint64(wk*perWorker + i + 1)
				if _, err := s.Insert(w, key, []byte("v")); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent insert: %v", err)
	}

	checkW := mustWorker(t, s)
	total := 0
	if _, err := s.Walk(checkW, func(Record) int { total++; return 1 }); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if total != workers*perWorker {
		t.Fatalf("want %d live records, got %d", workers*perWorker, total)
	}

	for wk := 0; wk < workers; wk++ {
		for i := 0; i < perWorker; i += 97 { // sample, not exhaustive
			key := uint64(wk*perWorker + i + 1)
			h, ok, err := s.Lookup(checkW, key)
			if err != nil || !ok {
				t.Fatalf("key %#x missing after concurrent insert: ok=%v err=%v", key, ok, err)
			}
			s.FreeGeneration(checkW)
			_ = h
		}
	}
}

// Inserters and removers race over a shared key space; no operation should
// ever return an unexpected error (which would indicate a use-after-free or
// a corrupted trie state reached under contention).
func TestConcurrentInsertAndRemove(t *testing.T) {
	s := mustOpen(t, WithRootBits(8), WithMaxWorkers(16))

	const sharedKeys = 200
	const rounds = 500

	var g errgroup.Group
	for inserter := 0; inserter < 4; inserter++ {
		g.Go(func() error {
			w, err := s.Register()
			if err != nil {
				return err
			}
			defer s.Release(w)
			for i := 0; i < rounds; i++ {
				key := uint64(i%sharedKeys + 1)
				if _, err := s.Insert(w, key, []byte("v")); err != nil {
					return err
				}
			}
			return nil
		})
	}
	for remover := 0; remover < 4; remover++ {
		g.Go(func() error {
			w, err := s.Register()
			if err != nil {
				return err
			}
			defer s.Release(w)
			for i := 0; i < rounds; i++ {
				key := uint64(i%sharedKeys + 1)
				if err := s.Remove(w, key); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent insert/remove: %v", err)
	}

	checkW := mustWorker(t, s)
	if _, err := s.Walk(checkW, func(rec Record) int {
		if rec.Key == 0 || rec.Key > sharedKeys {
			t.Errorf("walk visited an implausible record key %#x after concurrent churn", rec.Key)
		}
		return 1
	}); err != nil {
		t.Fatalf("walk: %v", err)
	}
}
