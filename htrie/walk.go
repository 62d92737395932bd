package htrie

// BucketHandle is an opaque handle to a bucket returned by Lookup. It stays
// valid for reads until the caller releases the epoch with FreeGeneration:
// reclamation of the underlying bucket is deferred until every worker's
// published epoch has moved past any remove that unlinked it.
type BucketHandle struct {
	off    uint32
	bucket *Bucket
}

// Lookup descends to the bucket holding key's collision chain, if any. It
// publishes w's epoch but does not release it; the caller must call
// FreeGeneration(w) once done scanning the returned handle.
func (s *Store) Lookup(w WorkerID, key uint64) (BucketHandle, bool, error) {
	if err := s.checkWorker(w); err != nil {
		return BucketHandle{}, false, err
	}
	s.observe(w)

	d := s.descend(key)
	if d.bucket == nil {
		return BucketHandle{}, false, nil
	}
	return BucketHandle{off: d.leaf, bucket: d.bucket}, true, nil
}

// FreeGeneration releases the epoch published by a prior Lookup, allowing
// reclamation to proceed past this worker.
func (s *Store) FreeGeneration(w WorkerID) {
	s.freeGeneration(w)
}

// BScanForRec linearly scans h's bucket starting at *i, skipping slots
// whose occupancy bit is clear, and returns the first record whose key
// equals key. On a match it advances *i past the returned slot, so callers
// walk a key's full collision chain by calling it again with the same
// cursor until ok is false.
func BScanForRec(h BucketHandle, key uint64, i *int) (Record, bool) {
	colMap := h.bucket.ColMap.Load()
	for ; *i < NumSlots; *i++ {
		if !occupied(colMap, *i) {
			continue
		}
		rec := h.bucket.Slots[*i]
		if rec.Key == key {
			*i++
			return rec, true
		}
	}
	return Record{}, false
}

// maxWalkDepth bounds Walk's recursion: the remaining key bits past the
// root, 4 per level, rounded up, plus one for the leaf bucket level.
func (s *Store) maxWalkDepth() int {
	remaining := wordBits - s.cfg.RootBits
	return (remaining+3)/4 + 1
}

// Walk performs a depth-first visit of the trie: fn is called once per
// live record, and Walk returns the sum of fn's results. Walk publishes
// w's epoch for its own duration and releases it on return, so a
// concurrent Remove cannot reclaim anything Walk is currently visiting.
func (s *Store) Walk(w WorkerID, fn func(Record) int) (int, error) {
	if err := s.checkWorker(w); err != nil {
		return 0, err
	}
	s.observe(w)
	defer s.freeGeneration(w)

	root := s.nodes.Get(s.root)
	sum := s.walkNode(root, fn, 1, s.maxWalkDepth(), map[uint32]struct{}{})
	return sum, nil
}

func (s *Store) walkNode(node *Node, fn func(Record) int, depth, maxDepth int, seen map[uint32]struct{}) int {
	sum := 0
	for i := range node.Shifts {
		raw := node.Shifts[i].Load()
		if isEmpty(raw) {
			continue
		}
		if isData(raw) {
			// A burst that ran out of buckets may leave the source bucket
			// aliased under more than one slot; visit it once regardless.
			off := untag(raw)
			if _, dup := seen[off]; dup {
				continue
			}
			seen[off] = struct{}{}
			sum += s.walkBucket(s.buckets.Get(off), fn)
			continue
		}
		if depth >= maxDepth {
			// Should be unreachable: a well-formed trie never nests deeper
			// than maxWalkDepth index levels.
			continue
		}
		sum += s.walkNode(s.nodes.Get(raw), fn, depth+1, maxDepth, seen)
	}
	return sum
}

func (s *Store) walkBucket(b *Bucket, fn func(Record) int) int {
	sum := 0
	colMap := b.ColMap.Load()
	for slot := 0; slot < NumSlots; slot++ {
		if !occupied(colMap, slot) {
			continue
		}
		sum += fn(b.Slots[slot])
	}
	return sum
}
