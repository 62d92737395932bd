package htrie

import (
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/cenkalti/backoff/v4"
)

// maxEpoch marks a worker as idle, i.e. not inside any operation.
const maxEpoch = ^uint64(0)

// WorkerID identifies one of a Store's registered workers. Every public
// operation takes one; the number is bounded by Config.Workers, and each
// worker owns its epoch slot and bucket retire queue exclusively.
type WorkerID int

type workerSlot struct {
	epoch   atomic.Uint64
	inUse   atomic.Bool
	retired []uint32 // single-writer: only the owning worker ever touches this
}

type workerTable struct {
	slots []workerSlot
}

func newWorkerTable(n int) *workerTable {
	wt := &workerTable{slots: make([]workerSlot, n)}
	for i := range wt.slots {
		wt.slots[i].epoch.Store(maxEpoch)
	}
	return wt
}

func (wt *workerTable) register() (WorkerID, bool) {
	for i := range wt.slots {
		if wt.slots[i].inUse.CompareAndSwap(false, true) {
			wt.slots[i].epoch.Store(maxEpoch)
			return WorkerID(i), true
		}
	}
	return 0, false
}

func (wt *workerTable) release(w WorkerID) {
	wt.slots[w].retired = nil
	wt.slots[w].inUse.Store(false)
}

func (wt *workerTable) valid(w WorkerID) bool {
	return int(w) >= 0 && int(w) < len(wt.slots) && wt.slots[w].inUse.Load()
}

func (wt *workerTable) popRetired(w WorkerID) (uint32, bool) {
	q := wt.slots[w].retired
	if len(q) == 0 {
		return 0, false
	}
	off := q[len(q)-1]
	wt.slots[w].retired = q[:len(q)-1]
	return off, true
}

func (wt *workerTable) pushRetired(w WorkerID, off uint32) {
	wt.slots[w].retired = append(wt.slots[w].retired, off)
}

// Register hands out a WorkerID bound to this Store. Callers should
// Release it when the goroutine is done issuing operations.
func (s *Store) Register() (WorkerID, error) {
	w, ok := s.workers.register()
	if !ok {
		return 0, ErrNoWorkers
	}
	return w, nil
}

// Release returns a WorkerID to the free pool. Any buckets still queued in
// its retire list are handed to a global spillover queue rather than lost.
func (s *Store) Release(w WorkerID) {
	for {
		off, ok := s.workers.popRetired(w)
		if !ok {
			break
		}
		s.spillover.push(off)
	}
	s.workers.release(w)
}

// ActiveWorkers renders a point-in-time snapshot of which worker slots are
// currently registered. This is a rendering for diagnostics/metrics only:
// each bit is read via a relaxed atomic load with no ordering guarantee
// relative to concurrent Register/Release calls, so the result may be
// stale by the time it is inspected.
func (s *Store) ActiveWorkers() *bitset.BitSet {
	bs := bitset.New(uint(len(s.workers.slots)))
	for i := range s.workers.slots {
		if s.workers.slots[i].inUse.Load() {
			bs.Set(uint(i))
		}
	}
	return bs
}

func (s *Store) checkWorker(w WorkerID) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.workers.valid(w) {
		return ErrBadWorker
	}
	return nil
}

// observe publishes the store's current generation for worker w, the one
// relaxed store every read or write operation pays on entry.
func (s *Store) observe(w WorkerID) {
	s.workers.slots[w].epoch.Store(s.gen.Load())
}

// freeGeneration marks worker w idle again, the matching store on exit.
func (s *Store) freeGeneration(w WorkerID) {
	s.workers.slots[w].epoch.Store(maxEpoch)
}

// quiesce advances the global generation and spin-waits, with bounded
// backoff in place of a bare busy-spin, until every worker has either gone
// idle or moved past it. The wait is bounded only by the slowest
// in-flight reader.
func (s *Store) quiesce(w WorkerID) uint64 {
	gen := s.gen.Add(1)

	// Re-publish this worker's own epoch past the new generation: the epoch
	// it published on entry predates the increment and would otherwise gate
	// its own wait. Everything it is about to reclaim is already unlinked
	// and owned by it exclusively. Concurrent quiescers order themselves by
	// generation: each waits only on workers that incremented earlier, so
	// the waits form a total order and always drain.
	s.workers.slots[w].epoch.Store(gen + 1)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Microsecond
	bo.MaxInterval = 2 * time.Millisecond
	bo.MaxElapsedTime = 0 // never give up: bounded by readers, not a deadline

	for {
		quiet := true
		for i := range s.workers.slots {
			e := s.workers.slots[i].epoch.Load()
			if e != maxEpoch && e <= gen {
				quiet = false
				break
			}
		}
		if quiet {
			return gen
		}
		time.Sleep(bo.NextBackOff())
	}
}
