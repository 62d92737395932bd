package htrie

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// maxRemoveAttempts bounds the copy-on-write retry loop the same way
// maxInsertAttempts bounds insert: each attempt either wins the parent CAS or
// loses a narrow race against a concurrent insert/burst and retries.
const maxRemoveAttempts = 4 * wordBits

// Remove deletes every record whose key equals key and reclaims their
// payloads. It is a no-op, returning nil, if key is not present.
// Reclamation of the old bucket and any freed data chunks is deferred
// until every other worker's published epoch has moved past this call's
// generation, so a concurrent Lookup/Walk holding a handle into the old
// bucket never sees it vanish mid-read.
func (s *Store) Remove(w WorkerID, key uint64) error {
	if err := s.checkWorker(w); err != nil {
		return err
	}

	s.observe(w)
	defer s.freeGeneration(w)

	for attempt := 0; attempt < maxRemoveAttempts; attempt++ {
		d := s.descend(key)
		if d.bucket == nil {
			return nil // nothing to remove
		}

		newOff, newBucket, err := s.allocBucket(w)
		if err != nil {
			return fmt.Errorf("htrie: remove: %w", ErrOOM)
		}

		var reclaim []Record
		colMap := d.bucket.ColMap.Load()
		for slot := 0; slot < NumSlots; slot++ {
			if !occupied(colMap, slot) {
				continue
			}
			rec := d.bucket.Slots[slot]
			if rec.Key == key {
				reclaim = append(reclaim, rec)
				continue
			}
			placeInFreeSlot(newBucket, rec)
		}

		if !d.node.Shifts[d.slotIdx].CompareAndSwap(taggedData(d.leaf), taggedData(newOff)) {
			// Lost the race to a concurrent writer: the replacement bucket
			// was never observed by any reader, so it can be reused
			// immediately without an epoch wait.
			s.workers.pushRetired(w, newOff)
			s.bumpCASRetry()
			continue
		}

		if len(reclaim) == 0 {
			// Nothing matched key (the bucket never held it, or a concurrent
			// remove of the same key won): the swap was still a harmless copy,
			// but there is nothing to reclaim beyond the old bucket itself.
			s.retireAndFreePayloads(w, d.leaf, nil)
			return nil
		}

		return s.retireAndFreePayloads(w, d.leaf, reclaim)
	}

	return fmt.Errorf("htrie: remove: %w", ErrKeySpaceExhausted)
}

// retireAndFreePayloads quiesces the epoch, retires the old bucket to
// worker w's free queue, and frees every reclaimed record's payload,
// aggregating any per-record failures.
func (s *Store) retireAndFreePayloads(w WorkerID, oldBucket uint32, reclaim []Record) error {
	gen := s.quiesce(w)
	s.bumpGeneration(gen)

	s.workers.pushRetired(w, oldBucket)

	var errs *multierror.Error
	freed, failed := 0, 0
	for _, rec := range reclaim {
		if err := s.freePayload(rec); err != nil {
			errs = multierror.Append(errs, err)
			failed++
			continue
		}
		freed++
	}
	if len(reclaim) > 0 {
		s.bumpRemoved()
	}
	s.bumpReclaimed(freed, failed)

	if errs != nil {
		return fmt.Errorf("htrie: remove: %w", errs)
	}
	return nil
}

// freePayload releases rec's backing storage per the store's mode.
func (s *Store) freePayload(rec Record) error {
	switch s.mode {
	case ModeFixedInplace:
		return nil // body lived inside the now-retired bucket slot
	case ModeFixedIndirect:
		s.dcache.FreeFixed(rec.DataOff)
		return nil
	default: // ModeVarlen
		return s.dcache.FreeChain(rec.DataOff)
	}
}
