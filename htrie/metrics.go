package htrie

// Thin, nil-safe wrappers around the optional metrics bundle: a Store
// created without WithMetrics has s.metrics == nil, and every call site in
// insert.go/burst.go/remove.go stays a single line either way.

func (s *Store) bumpInserted() {
	if s.metrics != nil {
		s.metrics.Inserted.Inc()
	}
}

func (s *Store) bumpBurst(kind burstKind) {
	if s.metrics == nil {
		return
	}
	var outcome string
	switch kind {
	case burstOK:
		outcome = "ok"
	case burstRetry:
		outcome = "retry"
	case burstDegenerate:
		outcome = "degenerate"
	case burstExhausted:
		outcome = "exhausted"
	}
	s.metrics.Bursts.WithLabelValues(outcome).Inc()
}

func (s *Store) bumpRollback() {
	if s.metrics != nil {
		s.metrics.RollbackBytes.Add(float64(accountRollback()))
	}
}

func (s *Store) bumpRemoved() {
	if s.metrics != nil {
		s.metrics.Removed.Inc()
	}
}

func (s *Store) bumpReclaimed(n int, errs int) {
	if s.metrics == nil {
		return
	}
	s.metrics.Reclaimed.Add(float64(n))
	if errs > 0 {
		s.metrics.ReclaimErrors.Add(float64(errs))
	}
}

func (s *Store) bumpGeneration(gen uint64) {
	if s.metrics != nil {
		s.metrics.Generation.Set(float64(gen))
	}
}

// bumpCASRetry counts a lost CAS race on an index slot or collision bitmap
// that forced a writer to retry: insert's lost empty-slot/bucket-slot races,
// burst's parent-slot and col_map races, and remove's parent-slot race.
func (s *Store) bumpCASRetry() {
	if s.metrics != nil {
		s.metrics.CASRetries.Inc()
	}
}
