// Package htrie implements a cache-conscious burst hash trie: a trie over
// 64-bit hash keys whose leaves are buckets of record slots, backed by the
// offset-addressed arena in internal/arena. It provides concurrent insert,
// lookup, iteration and removal, with duplicate keys forming a collision
// chain, and a lock-free generation/epoch protocol letting readers observe
// a consistent snapshot while writers mutate the trie without blocking
// them.
package htrie

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Priyanshu23/htriekv/htrie/htriemetrics"
	"github.com/Priyanshu23/htriekv/internal/arena"
)

// Store is a single HTrie instance. Multiple Stores may coexist in one
// process.
type Store struct {
	id      uuid.UUID
	cfg     Config
	mode    Mode
	nodes   *arena.Pool[Node]
	buckets *arena.Pool[Bucket]
	dcache  *arena.DCache

	root    uint32
	rootFan int

	gen       atomic.Uint64
	workers   *workerTable
	spillover bucketSpillover

	metrics *htriemetrics.Metrics
	closed  atomic.Bool
}

// Init opens a new Store. The backing storage is owned by the arena
// package, growing its pools on demand, bounded optionally by
// WithMaxBuckets/WithMaxNodes/WithMaxChunksPerClass.
func Init(opts ...Option) (*Store, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	s := &Store{
		id:      uuid.New(),
		cfg:     cfg,
		mode:    modeFor(cfg),
		nodes:   arena.NewPool[Node](cfg.MaxNodes),
		buckets: arena.NewPool[Bucket](cfg.MaxBuckets),
		dcache:  arena.NewDCache(cfg.RecLen, cfg.MaxChunksPerClass),
		workers: newWorkerTable(cfg.Workers),
	}
	s.rootFan = 1 << cfg.RootBits

	rootOff, _, err := s.nodes.Alloc(func() *Node { return newNode(s.rootFan) })
	if err != nil {
		return nil, fmt.Errorf("htrie: init: %w", ErrOOM)
	}
	s.root = rootOff

	return s, nil
}

// Open is an alias for Init kept for readers used to opening a store
// rather than initializing one.
func Open(opts ...Option) (*Store, error) { return Init(opts...) }

// WithMetrics registers optional Prometheus instrumentation (bursts,
// reclamations, CAS retries, live generation) against reg. It must be
// called before any operation that could race with metric reads.
func (s *Store) WithMetrics(reg htriemetrics.Registerer) *Store {
	s.metrics = htriemetrics.New(reg, s.id.String())
	return s
}

// ID is this Store's process-unique identifier.
func (s *Store) ID() uuid.UUID { return s.id }

// Mode reports the record storage mode this Store was configured with.
func (s *Store) Mode() Mode { return s.mode }

// Close drains the store: it marks the Store closed, so later operations
// taking a WorkerID return ErrClosed, and forces every worker slot idle. It
// does not release the backing pools; they stay referenced by the Store
// until the Store itself is unreachable. Close does not wait for
// in-flight operations; callers must ensure none are in flight. Store does
// not track in-flight callers itself: the epoch array already is that
// tracking, and a caller still holding a WorkerID is, by construction, not
// idle.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	for i := range s.workers.slots {
		s.workers.slots[i].epoch.Store(maxEpoch)
	}
	return nil
}

// allocBucket obtains a fresh, zeroed bucket for worker w: first from that
// worker's own retire queue, then from the process-wide spillover queue
// left behind by released workers, finally from the arena pool.
func (s *Store) allocBucket(w WorkerID) (uint32, *Bucket, error) {
	if off, ok := s.workers.popRetired(w); ok {
		b := s.buckets.Get(off)
		b.reset()
		return off, b, nil
	}
	if off, ok := s.spillover.pop(); ok {
		b := s.buckets.Get(off)
		b.reset()
		return off, b, nil
	}
	off, b, err := s.buckets.Alloc(func() *Bucket { return &Bucket{} })
	if err != nil {
		return 0, nil, err
	}
	return off, b, nil
}

// bucketSpillover is a small Treiber stack of bucket offsets, used only as
// the landing spot for a released worker's still-pending retire queue (see
// Store.Release). It is not the primary reuse path (the per-worker retire
// queues are), so a plain lock-free stack is enough.
type bucketSpillover struct {
	top atomic.Pointer[spillNode]
}

type spillNode struct {
	off  uint32
	next *spillNode
}

func (q *bucketSpillover) push(off uint32) {
	n := &spillNode{off: off}
	for {
		old := q.top.Load()
		n.next = old
		if q.top.CompareAndSwap(old, n) {
			return
		}
	}
}

func (q *bucketSpillover) pop() (uint32, bool) {
	for {
		old := q.top.Load()
		if old == nil {
			return 0, false
		}
		if q.top.CompareAndSwap(old, old.next) {
			return old.off, true
		}
	}
}

// recordOverhead is the size of a Record's fixed metadata (Key + DataOff +
// DataLen: 8 + 4 + 4 bytes) charged against the rollback-accounting quirk below.
const recordOverhead = 16

// accountRollback charges a rolled-back payload at overhead plus a full
// bucket rather than its actual length; see arena.AccountRollback.
func accountRollback() int {
	return arena.AccountRollback(recordOverhead)
}
