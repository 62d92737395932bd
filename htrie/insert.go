package htrie

import "fmt"

// maxInsertAttempts bounds the insert retry loop. Each attempt either
// succeeds, loses a narrow race and retries immediately, or consumes 4 bits
// of key space via a burst; wordBits/4 bursts exhaust the key entirely, so
// this is a generous ceiling with headroom for CAS contention retries.
const maxInsertAttempts = 4 * wordBits

// Insert places a record for key, returning the stored Record. len(data)
// must be > 0; for ModeFixedInplace/ModeFixedIndirect it must equal
// Config.RecLen exactly. Duplicate keys are allowed and form a collision
// chain within (or, after a burst, across aliased copies of) one bucket.
func (s *Store) Insert(w WorkerID, key uint64, data []byte) (Record, error) {
	if err := s.checkWorker(w); err != nil {
		return Record{}, err
	}
	if len(data) == 0 {
		return Record{}, ErrEmptyRecord
	}

	s.observe(w)
	defer s.freeGeneration(w)

	rec, err := s.preparePayload(key, data)
	if err != nil {
		return Record{}, err
	}

	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		d := s.descend(key)

		if d.bucket == nil {
			ok, err := s.tryInsertEmpty(d, rec, w)
			if err != nil {
				s.rollbackPayload(rec)
				return Record{}, fmt.Errorf("htrie: insert: %w", ErrOOM)
			}
			if ok {
				s.bumpInserted()
				return rec, nil
			}
			s.bumpCASRetry()
			continue
		}

		if slot, ok := findFreeSlot(d.bucket.ColMap.Load()); ok {
			if s.tryInsertIntoSlot(d.bucket, rec, slot) {
				s.bumpInserted()
				return rec, nil
			}
			s.bumpCASRetry()
			continue
		}

		res, err := s.burst(d.node, d.slotIdx, d.leaf, d.bucket, d.bits, w)
		if err != nil {
			s.rollbackPayload(rec)
			return Record{}, fmt.Errorf("htrie: insert: %w", ErrOOM)
		}
		s.bumpBurst(res.kind)
		switch res.kind {
		case burstExhausted:
			s.rollbackPayload(rec)
			return Record{}, ErrKeySpaceExhausted
		default: // burstOK, burstRetry, burstDegenerate: redescend and retry
			continue
		}
	}

	s.rollbackPayload(rec)
	return Record{}, ErrKeySpaceExhausted
}

// preparePayload allocates the record's backing storage ahead of the trie
// descent, so a lost race later only costs a rollback, never a torn
// half-written payload visible through an installed slot.
func (s *Store) preparePayload(key uint64, data []byte) (Record, error) {
	rec := Record{Key: key}

	switch s.mode {
	case ModeFixedInplace:
		if len(data) != s.cfg.RecLen {
			return Record{}, fmt.Errorf("%w: record length %d != configured %d", ErrInvalidConfig, len(data), s.cfg.RecLen)
		}
		rec.Body = append([]byte(nil), data...)
		return rec, nil

	case ModeFixedIndirect:
		if len(data) != s.cfg.RecLen {
			return Record{}, fmt.Errorf("%w: record length %d != configured %d", ErrInvalidConfig, len(data), s.cfg.RecLen)
		}
		off, n, err := s.dcache.AllocFixed(data)
		if err != nil {
			return Record{}, fmt.Errorf("htrie: insert: %w", ErrOOM)
		}
		rec.DataOff = off
		rec.DataLen = uint32(n)
		return rec, nil

	default: // ModeVarlen
		off, n, err := s.dcache.AllocChain(data)
		if err != nil {
			return Record{}, fmt.Errorf("htrie: insert: %w", ErrOOM)
		}
		rec.DataOff = off
		rec.DataLen = uint32(n)
		return rec, nil
	}
}

func (s *Store) rollbackPayload(rec Record) {
	switch s.mode {
	case ModeFixedInplace:
		// body lives in the (never-installed) bucket slot; nothing to free.
	case ModeFixedIndirect:
		s.dcache.FreeFixed(rec.DataOff)
	case ModeVarlen:
		_ = s.dcache.FreeChain(rec.DataOff)
	}
	s.bumpRollback()
}

// tryInsertEmpty handles the empty-slot outcome of descend: allocate a
// fresh bucket, seed slot 0, then CAS the index slot from empty to the
// tagged bucket offset. A non-nil error means the allocator is out of
// buckets and must be surfaced to the caller as such, distinct from the
// false/nil "lost the CAS race, retry" outcome.
func (s *Store) tryInsertEmpty(d descentResult, rec Record, w WorkerID) (bool, error) {
	off, b, err := s.allocBucket(w)
	if err != nil {
		return false, err
	}
	b.Slots[0] = rec
	b.ColMap.Store(bitMask(bitForSlot(0)))

	if d.node.Shifts[d.slotIdx].CompareAndSwap(0, taggedData(off)) {
		return true, nil
	}
	// Lost the race: this bucket was never observed by any reader, so it
	// can be reused immediately without an epoch wait.
	s.workers.pushRetired(w, off)
	return false, nil
}

// tryInsertIntoSlot handles the bucket-found-with-a-free-slot outcome:
// write speculatively, then win the bit race, then re-write to guard
// against being stomped by a racing inserter that lost that same bit race.
func (s *Store) tryInsertIntoSlot(b *Bucket, rec Record, slot int) bool {
	for {
		b.Slots[slot] = rec
		if b.trySetBit(bitForSlot(slot)) {
			b.Slots[slot] = rec
			return true
		}
		var ok bool
		slot, ok = findFreeSlot(b.ColMap.Load())
		if !ok {
			return false // bucket filled while we were racing; caller bursts
		}
	}
}
